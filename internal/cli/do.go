package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/reqops/client"
)

type doOptions struct {
	method   string
	params   []string
	headers  []string
	data     string
	timeout  time.Duration
	retries  int
	filename string
	refresh  bool
	noCache  bool
}

func newDoCommand(root *rootOptions) *cobra.Command {
	opts := &doOptions{}
	cmd := &cobra.Command{
		Use:   "do <endpoint>",
		Short: "Send one request and print its envelope",
		Example: `  reqops do /users --param page=2
  reqops do /orders -X POST --data '{"item":"book"}'
  reqops do /report --refresh`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.descriptor(args[0], cmd.Flags().Changed("retries"))
			if err != nil {
				return err
			}

			c, cleanup, err := openClient(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer cleanup()

			send := c.Request
			switch {
			case opts.noCache:
				send = c.Cacheless
			case opts.refresh:
				send = c.Refresh
			}
			env, err := send(cmd.Context(), d)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), env); err != nil {
				return err
			}
			if !env.OK() {
				return errFailed
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.method, "method", "X", "", "HTTP method (default from config, else GET)")
	f.StringArrayVarP(&opts.params, "param", "p", nil, "query parameter key=value (repeatable)")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "header key=value or 'Key: value' (repeatable)")
	f.StringVarP(&opts.data, "data", "d", "", "request body; JSON is sent as JSON, anything else as text")
	f.DurationVar(&opts.timeout, "timeout", 0, "per-attempt timeout")
	f.IntVar(&opts.retries, "retries", 0, "maximum retries after the first attempt")
	f.StringVar(&opts.filename, "filename", "", "file name for the file parser")
	f.BoolVar(&opts.refresh, "refresh", false, "skip the cache lookup and overwrite the entry")
	f.BoolVar(&opts.noCache, "no-cache", false, "bypass the cache entirely")
	cmd.MarkFlagsMutuallyExclusive("refresh", "no-cache")
	return cmd
}

func (o *doOptions) descriptor(endpoint string, retriesSet bool) (client.Descriptor, error) {
	d := client.Descriptor{
		Endpoint: endpoint,
		Method:   o.method,
		Timeout:  o.timeout,
		Filename: o.filename,
	}
	if retriesSet {
		d.MaxRetries = client.Retries(o.retries)
	}

	if len(o.params) > 0 {
		d.Params = make(map[string]any, len(o.params))
		for _, p := range o.params {
			k, v, ok := strings.Cut(p, "=")
			if !ok || k == "" {
				return d, fmt.Errorf("invalid --param %q: want key=value", p)
			}
			d.Params[k] = v
		}
	}

	if len(o.headers) > 0 {
		d.Headers = make(map[string]string, len(o.headers))
		for _, h := range o.headers {
			k, v, ok := strings.Cut(h, ":")
			if !ok {
				k, v, ok = strings.Cut(h, "=")
			}
			k = strings.TrimSpace(k)
			if !ok || k == "" {
				return d, fmt.Errorf("invalid --header %q: want 'Key: value'", h)
			}
			d.Headers[k] = strings.TrimSpace(v)
		}
	}

	if o.data != "" {
		var v any
		if json.Valid([]byte(o.data)) {
			_ = json.Unmarshal([]byte(o.data), &v)
			d.Body = v
		} else {
			d.Body = o.data
		}
	}
	return d, nil
}
