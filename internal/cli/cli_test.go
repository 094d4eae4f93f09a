package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/reqops/client"
)

type upstream struct {
	*httptest.Server
	hits atomic.Int32
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			return
		case "/echo":
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"method": r.Method,
				"q":      r.URL.Query().Get("q"),
				"tenant": r.Header.Get("X-Tenant"),
				"body":   string(body),
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"path": r.URL.Path})
	}))
	t.Cleanup(u.Close)
	return u
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reqops.yaml")
	body := "client:\n  base_url: " + baseURL + "\n  max_retries: 0\ncache:\n  type: memory\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeEnvelope(t *testing.T, out string) client.Envelope {
	t.Helper()
	var env client.Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	return env
}

func TestDo(t *testing.T) {
	u := newUpstream(t)
	cfg := writeConfig(t, u.URL)

	out, err := run(t, "do", "/echo", "--config", cfg,
		"-X", "post", "--param", "q=go", "-H", "X-Tenant: acme", "--data", `{"a":1}`)
	require.NoError(t, err)

	env := decodeEnvelope(t, out)
	assert.True(t, env.Result)
	assert.Equal(t, http.StatusOK, env.Code)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "POST", data["method"])
	assert.Equal(t, "go", data["q"])
	assert.Equal(t, "acme", data["tenant"])
	assert.JSONEq(t, `{"a":1}`, data["body"].(string))
}

func TestDo_FailureEnvelope(t *testing.T) {
	u := newUpstream(t)
	out, err := run(t, "do", "/missing", "--config", writeConfig(t, u.URL))
	require.ErrorIs(t, err, errFailed)

	env := decodeEnvelope(t, out)
	assert.False(t, env.Result)
	assert.Equal(t, http.StatusNotFound, env.Code)
}

func TestDo_FlagErrors(t *testing.T) {
	u := newUpstream(t)
	cfg := writeConfig(t, u.URL)

	_, err := run(t, "do", "/x", "--config", cfg, "--param", "novalue")
	assert.ErrorContains(t, err, "--param")

	_, err = run(t, "do", "/x", "--config", cfg, "--refresh", "--no-cache")
	assert.Error(t, err)

	_, err = run(t, "do", "--config", cfg)
	assert.Error(t, err, "endpoint is required")

	assert.Zero(t, u.hits.Load())
}

func TestDo_MissingConfig(t *testing.T) {
	_, err := run(t, "do", "/x", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDescriptorFromFlags(t *testing.T) {
	o := &doOptions{
		method:  "GET",
		params:  []string{"a=1", "b=x=y"},
		headers: []string{"Accept: text/plain", "X-Id=7"},
		data:    "not json",
		retries: 0,
	}
	d, err := o.descriptor("/p", true)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "x=y"}, d.Params)
	assert.Equal(t, map[string]string{"Accept": "text/plain", "X-Id": "7"}, d.Headers)
	assert.Equal(t, "not json", d.Body)
	require.NotNil(t, d.MaxRetries)
	assert.Zero(t, *d.MaxRetries)

	d, err = (&doOptions{}).descriptor("/p", false)
	require.NoError(t, err)
	assert.Nil(t, d.MaxRetries, "unset flag falls through to the config")
}

func TestDo_EachRunBuildsItsOwnClient(t *testing.T) {
	u := newUpstream(t)
	cfg := writeConfig(t, u.URL)

	_, err := run(t, "do", "/a", "--config", cfg)
	require.NoError(t, err)
	_, err = run(t, "do", "/a", "--config", cfg, "--no-cache")
	require.NoError(t, err)
	assert.EqualValues(t, 2, u.hits.Load())
}

func TestBatch(t *testing.T) {
	u := newUpstream(t)
	cfg := writeConfig(t, u.URL)
	batch := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(batch, []byte(`
async: true
requests:
  - endpoint: /one
  - endpoint: /missing
  - endpoint: /echo
    method: PUT
    params: {q: batch}
    timeout: 2s
`), 0o600))

	out, err := run(t, "batch", batch, "--config", cfg)
	require.ErrorIs(t, err, errFailed)
	assert.ErrorContains(t, err, "1 of 3")

	var envs []client.Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &envs), out)
	require.Len(t, envs, 3)
	assert.Equal(t, map[string]any{"path": "/one"}, envs[0].Data)
	assert.Equal(t, http.StatusNotFound, envs[1].Code)
	assert.Equal(t, "PUT", envs[2].Data.(map[string]any)["method"])
	assert.Equal(t, "batch", envs[2].Data.(map[string]any)["q"])
}

func TestBatch_BadFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("requests:\n  - endpoint: /x\n    timeout: soon\n"), 0o600))

	_, err := run(t, "batch", bad)
	assert.ErrorContains(t, err, "request 1")

	_, err = run(t, "batch", filepath.Join(dir, "absent.yaml"))
	assert.ErrorContains(t, err, "read batch file")
}

func TestHealth(t *testing.T) {
	u := newUpstream(t)
	out, err := run(t, "health", "--config", writeConfig(t, u.URL))
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, "healthy", report["status"])
	assert.Contains(t, report["checks"], "cache")
	assert.Contains(t, report["checks"], "upstream")
}
