package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/reqops/client"
)

// batchFile is the YAML document read by the batch command.
type batchFile struct {
	Async    bool           `yaml:"async"`
	Requests []batchRequest `yaml:"requests"`
}

type batchRequest struct {
	Endpoint   string            `yaml:"endpoint"`
	Method     string            `yaml:"method"`
	Params     map[string]any    `yaml:"params"`
	Headers    map[string]string `yaml:"headers"`
	Body       any               `yaml:"body"`
	Timeout    string            `yaml:"timeout"`
	MaxRetries *int              `yaml:"max_retries"`
	NoCache    bool              `yaml:"no_cache"`
	Filename   string            `yaml:"filename"`
}

func (r batchRequest) descriptor() (client.Descriptor, error) {
	d := client.Descriptor{
		Endpoint:   r.Endpoint,
		Method:     r.Method,
		Params:     r.Params,
		Headers:    r.Headers,
		Body:       r.Body,
		MaxRetries: r.MaxRetries,
		NoCache:    r.NoCache,
		Filename:   r.Filename,
	}
	if r.Timeout != "" {
		t, err := time.ParseDuration(r.Timeout)
		if err != nil {
			return d, fmt.Errorf("timeout %q: %w", r.Timeout, err)
		}
		d.Timeout = t
	}
	return d, nil
}

func loadBatch(path string) (*batchFile, []client.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read batch file: %w", err)
	}
	var bf batchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, nil, fmt.Errorf("decode batch file: %w", err)
	}
	ds := make([]client.Descriptor, 0, len(bf.Requests))
	for i, r := range bf.Requests {
		d, err := r.descriptor()
		if err != nil {
			return nil, nil, fmt.Errorf("request %d: %w", i+1, err)
		}
		ds = append(ds, d)
	}
	return &bf, ds, nil
}

func newBatchCommand(root *rootOptions) *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:   "batch <file.yaml>",
		Short: "Send a list of requests and print their envelopes in order",
		Long: `Send every request listed in a YAML file. Envelopes are printed as a JSON
array in the order of the file, whether the requests ran one after another
or concurrently with --async.

  async: true
  requests:
    - endpoint: /users/1
    - endpoint: /orders
      method: POST
      body: {item: book}
      timeout: 2s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bf, ds, err := loadBatch(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("async") {
				async = bf.Async
			}

			c, cleanup, err := openClient(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer cleanup()

			envs := c.RequestBatch(cmd.Context(), ds, async)
			if err := printJSON(cmd.OutOrStdout(), envs); err != nil {
				return err
			}
			failed := 0
			for _, env := range envs {
				if !env.OK() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errFailed, failed, len(envs))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "run requests concurrently, bounded by max_workers")
	return cmd
}
