package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("2026/pv-dec-1.pdf", []byte("%PDF-1.4 pv"))
	require.NoError(t, err)
	require.Equal(t, "2026/pv-dec-1.pdf", rel)

	file, err := store.Open(rel)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4 pv"), data)

	require.Equal(t, filepath.Dir(store.Path(rel)), filepath.Dir(file.Name()))
}

func TestLocalStorageSaveStream(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.SaveStream("pv-dec-2.pdf", bytes.NewReader([]byte("streamed")))
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path(rel))
	require.NoError(t, err)
	require.Equal(t, []byte("streamed"), data)
}

func TestLocalStorageDeleteIsIdempotent(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("pv-dec-3.pdf", []byte("pv"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(rel))
	require.NoError(t, store.Delete(rel))

	_, err = store.Open(rel)
	require.Error(t, err)
}
