package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(rawURL, body string) *http.Response {
	u, _ := url.Parse(rawURL)
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    &http.Request{URL: u},
	}
}

func TestJSONParser(t *testing.T) {
	ctx := context.Background()
	p := JSONParser{}

	v, err := p.Parse(ctx, response("https://a/x", `{"n":1,"tags":["a"]}`), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": float64(1), "tags": []any{"a"}}, v)

	v, err = p.Parse(ctx, response("https://a/x", "  \n"), ParseOptions{})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = p.Parse(ctx, response("https://a/x", "<html>"), ParseOptions{})
	assert.Error(t, err)
}

func TestJSONParser_CodecRoundTrip(t *testing.T) {
	p := JSONParser{}
	v, err := p.Parse(context.Background(), response("https://a/x", `[1,"two",{"three":3}]`), ParseOptions{})
	require.NoError(t, err)

	data, err := p.Encode(v)
	require.NoError(t, err)
	decoded, err := p.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, v, decoded)
}

func TestBytesParser(t *testing.T) {
	p := BytesParser{}
	v, err := p.Parse(context.Background(), response("https://a/x", "raw"), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), v)

	data, err := p.Encode(v)
	require.NoError(t, err)
	decoded, err := p.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, v, decoded)

	_, err = p.Encode("not bytes")
	assert.Error(t, err)
}

func TestRawParser(t *testing.T) {
	resp := response("https://a/x", "body")
	v, err := RawParser{}.Parse(context.Background(), resp, ParseOptions{})
	require.NoError(t, err)
	assert.Same(t, resp, v)
	assert.True(t, isStreaming(RawParser{}))
	assert.False(t, isStreaming(JSONParser{}))

	_, ok := Parser(RawParser{}).(CacheCodec)
	assert.False(t, ok, "streamed responses cannot be cached")
}

func TestFileParser(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name   string
		parser FileParser
		url    string
		opts   ParseOptions
		want   string
	}{
		{"explicit name", FileParser{BaseDir: dir}, "https://a/files/report.csv", ParseOptions{Filename: "mine.csv"}, "mine.csv"},
		{"last url segment", FileParser{BaseDir: dir}, "https://a/files/report.csv", ParseOptions{}, "report.csv"},
		{"default name", FileParser{BaseDir: dir}, "https://a/", ParseOptions{}, "downloaded_file"},
		{"custom default", FileParser{BaseDir: dir, DefaultName: "blob"}, "https://a", ParseOptions{}, "blob"},
		{"suffix", FileParser{BaseDir: dir, Suffix: ".part"}, "https://a/data", ParseOptions{}, "data.part"},
		{"no escape", FileParser{BaseDir: dir}, "https://a/x", ParseOptions{Filename: "../../etc/passwd"}, "passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.parser.Parse(ctx, response(tt.url, "payload"), tt.opts)
			require.NoError(t, err)

			path, ok := v.(string)
			require.True(t, ok)
			assert.Equal(t, filepath.Join(dir, tt.want), path)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "payload", string(data))
		})
	}
}

func TestFileParser_CreatesBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "downloads")
	v, err := FileParser{BaseDir: dir}.Parse(context.Background(), response("https://a/f.txt", "x"), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "f.txt"), v)
}

func TestParserByName(t *testing.T) {
	for name, want := range map[string]Parser{
		"":        JSONParser{},
		"json":    JSONParser{},
		"BYTES":   BytesParser{},
		"content": BytesParser{},
		"raw":     RawParser{},
		"file":    FileParser{BaseDir: "out"},
	} {
		p, err := ParserByName(name, "out")
		require.NoError(t, err, name)
		assert.Equal(t, want, p, name)
	}

	_, err := ParserByName("xml", "")
	assert.True(t, errors.Is(err, ErrUnknownParser))
}
