package blob

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	content := []byte("portrait of the great-grandparents")

	obj, err := store.Put(ctx, "fam/01HX/portrait.jpg", bytes.NewReader(content), int64(len(content)), "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), obj.Size)
	require.NotEmpty(t, obj.ETag)

	_, err = os.Stat(filepath.Join(root, "fam", "01HX", "portrait.jpg"))
	require.NoError(t, err)

	rc, got, err := store.Get(ctx, "fam/01HX/portrait.jpg")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, content, body)
	require.Equal(t, int64(len(content)), got.Size)
	require.Equal(t, "image/jpeg", got.ContentType)

	t.Run("same_content_same_etag", func(t *testing.T) {
		again, err := store.Put(ctx, "fam/copy.jpg", bytes.NewReader(content), -1, "image/jpeg")
		require.NoError(t, err)
		require.Equal(t, obj.ETag, again.ETag)
	})

	t.Run("size_mismatch_leaves_nothing_behind", func(t *testing.T) {
		_, err := store.Put(ctx, "fam/short.txt", strings.NewReader("abc"), 10, "text/plain")
		require.Error(t, err)

		_, _, err = store.Get(ctx, "fam/short.txt")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "fam/01HX/portrait.jpg"))
		_, _, err := store.Get(ctx, "fam/01HX/portrait.jpg")
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, store.Delete(ctx, "fam/01HX/portrait.jpg"))
	})

	t.Run("rejects_escaping_keys", func(t *testing.T) {
		_, err := store.Put(ctx, "../outside.txt", strings.NewReader("x"), 1, "text/plain")
		require.ErrorIs(t, err, ErrInvalidKey)
		_, _, err = store.Get(ctx, "../outside.txt")
		require.ErrorIs(t, err, ErrInvalidKey)
		require.ErrorIs(t, store.Delete(ctx, "/abs"), ErrInvalidKey)
	})

	t.Run("cancelled_context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Put(cctx, "fam/cancelled.txt", strings.NewReader("x"), 1, "text/plain")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewLocalStoreRequiresRoot(t *testing.T) {
	_, err := NewLocalStore("")
	require.Error(t, err)
}
