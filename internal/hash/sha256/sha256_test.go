package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte(`<div id="data" data-state="{}"></div>`))
	require.NoError(t, err)
	again, err := h.Hash([]byte(`<div id="data" data-state="{}"></div>`))
	require.NoError(t, err)
	require.Equal(t, got, again)
	require.Len(t, got, 64)
}

func TestHasherKnownDigest(t *testing.T) {
	t.Parallel()

	got, err := New().Hash([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)
	require.Equal(t, got, New().HashString("hello world"))
}

func TestHasherDistinguishesPages(t *testing.T) {
	t.Parallel()

	h := New()
	a, err := h.Hash([]byte("page-a"))
	require.NoError(t, err)
	b, err := h.Hash([]byte("page-b"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
