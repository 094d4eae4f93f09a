// Package cli implements the reqops command.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/reqops/client"
	"github.com/jonwraymond/reqops/config"
	"github.com/jonwraymond/reqops/observe"
)

var version = "dev"

// SetVersion sets the version reported by --version.
func SetVersion(v string) { version = v }

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the command tree. Envelopes and reports are written
// to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "reqops",
		Short: "Declarative HTTP requests with caching and retries",
		Long: `reqops sends HTTP requests described by endpoint and options against the
base URL of a configuration file, caching successful responses and retrying
transient failures. Every result is printed as a JSON envelope:

  {"result": true, "code": 200, "message": "Success", "data": ...}`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetOut(out)

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (YAML, JSON or TOML); REQOPS_* variables override it")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log to stderr at this level (debug, info, warn, error)")

	cmd.AddCommand(newDoCommand(opts))
	cmd.AddCommand(newBatchCommand(opts))
	cmd.AddCommand(newHealthCommand(opts))
	return cmd
}

// Execute runs the command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand(os.Stdout).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// errFailed is returned when a request completed with a failure envelope.
var errFailed = errors.New("request failed")

// openClient loads the configuration and builds a client. The returned
// cleanup closes the client and flushes telemetry.
func openClient(ctx context.Context, opts *rootOptions) (*client.Client, func(), error) {
	f, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	var copts []client.Option
	var obs observe.Observer
	if f.Observe.ServiceName != "" {
		obs, err = observe.NewObserver(ctx, f.Observe)
		if err != nil {
			return nil, nil, fmt.Errorf("observer: %w", err)
		}
		copts = append(copts, client.WithObserver(obs))
	} else if opts.logLevel != "" {
		copts = append(copts, client.WithLogger(observe.NewLogger(opts.logLevel)))
	}

	c, err := client.FromFile(ctx, f, copts...)
	if err != nil {
		if obs != nil {
			_ = obs.Shutdown(ctx)
		}
		return nil, nil, err
	}
	cleanup := func() {
		_ = c.Close()
		if obs != nil {
			_ = obs.Shutdown(context.Background())
		}
	}
	return c, cleanup, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
