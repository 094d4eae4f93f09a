package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ParseOptions carries per-call hints to a Parser.
type ParseOptions struct {
	// Filename is the file FileParser writes to.
	Filename string
}

// Parser converts a successful response into the envelope's data. Unless the
// parser is Streaming, the client closes the body after Parse returns.
type Parser interface {
	Parse(ctx context.Context, resp *http.Response, opts ParseOptions) (any, error)
}

// Streaming is implemented by parsers whose result keeps the response body
// open. The caller of the request owns closing it.
type Streaming interface {
	Streaming() bool
}

// CacheCodec is implemented by parsers whose results can be cached. Decode
// must return a value equal to the one Parse produced.
type CacheCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
}

func isStreaming(p Parser) bool {
	s, ok := p.(Streaming)
	return ok && s.Streaming()
}

// JSONParser decodes the body as JSON. An empty body yields nil.
type JSONParser struct{}

// Parse decodes the body.
func (JSONParser) Parse(_ context.Context, resp *http.Response, _ ParseOptions) (any, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Encode marshals the parsed value.
func (JSONParser) Encode(v any) ([]byte, error) { return json.Marshal(v) }

// Decode unmarshals a cached value.
func (JSONParser) Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// BytesParser returns the body as []byte.
type BytesParser struct{}

// Parse reads the body.
func (BytesParser) Parse(_ context.Context, resp *http.Response, _ ParseOptions) (any, error) {
	return io.ReadAll(resp.Body)
}

// Encode returns the bytes unchanged.
func (BytesParser) Encode(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("bytes parser cannot encode %T", v)
	}
	return b, nil
}

// Decode copies the cached bytes.
func (BytesParser) Decode(data []byte) (any, error) {
	return bytes.Clone(data), nil
}

// RawParser returns the *http.Response itself with its body unread. The
// caller must close the body; the attempt deadline is released on close.
type RawParser struct{}

// Parse returns resp.
func (RawParser) Parse(_ context.Context, resp *http.Response, _ ParseOptions) (any, error) {
	return resp, nil
}

// Streaming reports true.
func (RawParser) Streaming() bool { return true }

// FileParser streams the body into a file under BaseDir and returns its path.
type FileParser struct {
	// BaseDir is created if missing.
	// Default: "./downloads"
	BaseDir string

	// DefaultName is used when neither the call nor the URL supplies a name.
	// Default: "downloaded_file"
	DefaultName string

	// Suffix is appended to every filename.
	Suffix string
}

// Parse writes the body to disk.
func (p FileParser) Parse(_ context.Context, resp *http.Response, opts ParseOptions) (any, error) {
	dir := p.BaseDir
	if dir == "" {
		dir = "./downloads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	name := p.filename(resp, opts)
	target := filepath.Join(dir, name)
	f, err := os.Create(target)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return target, nil
}

// filename never lets a name escape BaseDir.
func (p FileParser) filename(resp *http.Response, opts ParseOptions) string {
	name := opts.Filename
	if name == "" && resp.Request != nil && resp.Request.URL != nil {
		if seg := path.Base(strings.TrimRight(resp.Request.URL.Path, "/")); seg != "." && seg != "/" {
			name = seg
		}
	}
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "" || name == "/" || name == "." || name == string(filepath.Separator) {
		name = p.DefaultName
		if name == "" {
			name = "downloaded_file"
		}
	}
	return name + p.Suffix
}

// ErrUnknownParser is returned by ParserByName.
var ErrUnknownParser = errors.New("reqops: unknown parser")

// ParserByName returns a built-in parser: "json", "bytes", "raw" or "file".
// dir configures the file parser.
func ParserByName(name, dir string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONParser{}, nil
	case "bytes", "content":
		return BytesParser{}, nil
	case "raw":
		return RawParser{}, nil
	case "file":
		return FileParser{BaseDir: dir}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParser, name)
	}
}

var (
	_ CacheCodec = JSONParser{}
	_ CacheCodec = BytesParser{}
	_ Streaming  = RawParser{}
)
