package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	values map[string]string
	err    error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Resolve(_ context.Context, ref string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.values[ref], nil
}

func (s *stubProvider) Close() error { return nil }

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("REQOPS_TEST_TOKEN", "abc")

	got, err := ExpandEnvStrict("Bearer ${REQOPS_TEST_TOKEN}")
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", got)

	got, err = ExpandEnvStrict("cost: $$5")
	require.NoError(t, err)
	assert.Equal(t, "cost: $5", got)

	_, err = ExpandEnvStrict("${REQOPS_TEST_UNSET_B} ${REQOPS_TEST_UNSET_A}")
	assert.ErrorIs(t, err, ErrMissingEnv)
	assert.Contains(t, err.Error(), "REQOPS_TEST_UNSET_A, REQOPS_TEST_UNSET_B")
}

func TestParseSecretRef(t *testing.T) {
	provider, ref, ok := ParseSecretRef("secretref:vault:kv/api:token")
	require.True(t, ok)
	assert.Equal(t, "vault", provider)
	assert.Equal(t, "kv/api:token", ref)

	for _, bad := range []string{"plain", "secretref:", "secretref:env", "secretref::x", "Bearer secretref:env:X"} {
		_, _, ok := ParseSecretRef(bad)
		assert.False(t, ok, bad)
	}
}

func TestResolver_ResolveValue(t *testing.T) {
	r := NewResolver(true, &stubProvider{name: "stub", values: map[string]string{"a": "one", "b": "two", "empty": ""}})
	ctx := context.Background()

	got, err := r.ResolveValue(ctx, "secretref:stub:a")
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	got, err = r.ResolveValue(ctx, "Bearer secretref:stub:a and secretref:stub:b")
	require.NoError(t, err)
	assert.Equal(t, "Bearer one and two", got)

	_, err = r.ResolveValue(ctx, "secretref:missing:a")
	assert.ErrorIs(t, err, ErrProviderNotRegistered)

	_, err = r.ResolveValue(ctx, "secretref:stub:empty")
	assert.ErrorIs(t, err, ErrEmptySecret)

	got, err = NewResolver(false, &stubProvider{name: "stub"}).ResolveValue(ctx, "secretref:stub:empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolver_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("vault sealed")
	r := NewResolver(true, &stubProvider{name: "stub", err: boom})
	_, err := r.ResolveValue(context.Background(), "secretref:stub:x")
	assert.ErrorIs(t, err, boom)
}

func TestResolver_NilOnlyExpandsEnv(t *testing.T) {
	t.Setenv("REQOPS_TEST_HOST", "api.example.com")
	var r *Resolver
	got, err := r.ResolveValue(context.Background(), "https://${REQOPS_TEST_HOST}/secretref:x:y")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/secretref:x:y", got)
}

func TestResolver_ResolveAny(t *testing.T) {
	t.Setenv("REQOPS_TEST_SECRET", "s3cret")
	r := NewResolver(true, EnvProvider{})

	out, err := r.ResolveAny(context.Background(), map[string]any{
		"client_secret": "secretref:env:REQOPS_TEST_SECRET",
		"scopes":        []any{"read", "${REQOPS_TEST_SECRET}"},
		"ttl":           30,
	})
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "s3cret", m["client_secret"])
	assert.Equal(t, []any{"read", "s3cret"}, m["scopes"])
	assert.Equal(t, 30, m["ttl"])

	_, err = r.ResolveAny(context.Background(), map[string]any{"k": "secretref:env:REQOPS_TEST_NOPE"})
	assert.ErrorIs(t, err, ErrMissingEnv)
	assert.Contains(t, err.Error(), `"k"`)
}

func TestResolver_ResolveMap(t *testing.T) {
	t.Setenv("REQOPS_TEST_KEY", "k1")
	out, err := NewResolver(true, EnvProvider{}).ResolveMap(context.Background(), map[string]string{
		"X-API-Key": "secretref:env:REQOPS_TEST_KEY",
	})
	require.NoError(t, err)
	assert.Equal(t, "k1", out["X-API-Key"])
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "token"), []byte("tok\n"), 0o600))

	p := FileProvider{BaseDir: dir}
	got, err := p.Resolve(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	_, err = p.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"env", "file"}, DefaultRegistry.List())

	r := NewRegistry()
	assert.Error(t, r.Register(" ", nil))
	require.NoError(t, r.Register("stub", func(map[string]any) (Provider, error) {
		return &stubProvider{name: "stub", values: map[string]string{"x": "y"}}, nil
	}))
	assert.Error(t, r.Register("stub", func(map[string]any) (Provider, error) { return nil, nil }))

	_, err := r.Create("nope", nil)
	assert.ErrorIs(t, err, ErrProviderNotRegistered)

	res, err := r.Resolver(true, nil)
	require.NoError(t, err)
	got, err := res.ResolveValue(context.Background(), "secretref:stub:x")
	require.NoError(t, err)
	assert.Equal(t, "y", got)
	assert.NoError(t, res.Close())
}
