package handlers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeFailFile struct {
	*os.File
}

func (f closeFailFile) Close() error {
	_ = f.File.Close()
	return errors.New("disk full")
}

func TestCopyUpload(t *testing.T) {
	t.Run("writes and closes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doc.txt")
		f, err := os.Create(path)
		require.NoError(t, err)

		require.NoError(t, copyUpload(f, path, strings.NewReader("hello")))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("close failure removes the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doc.txt")
		f, err := os.Create(path)
		require.NoError(t, err)

		err = copyUpload(closeFailFile{f}, path, strings.NewReader("hello"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestSaveUpload(t *testing.T) {
	h := &Handlers{uploadDir: filepath.Join(t.TempDir(), "uploads")}
	path, err := h.saveUpload(nopFile{strings.NewReader("body")}, "../../report.txt")
	require.NoError(t, err)

	assert.Equal(t, h.uploadDir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "-report.txt"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "body", string(data))
}

type nopFile struct {
	*strings.Reader
}

func (nopFile) Close() error { return nil }
