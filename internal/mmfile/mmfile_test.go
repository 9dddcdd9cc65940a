package mmfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapReadsFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "doc.fleece")
	content := []byte{0x32, 0x00}
	require.NoError(t, os.WriteFile(p, content, 0o644))

	data, cleanup, err := Map(p)
	require.NoError(t, err)
	require.Equal(t, content, data)
	require.NoError(t, cleanup())
}

func TestMapEmptyFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(p, nil, 0o644))

	data, cleanup, err := Map(p)
	require.NoError(t, err)
	require.Len(t, data, 0)
	require.NoError(t, cleanup())
}

func TestMapMissingFile(t *testing.T) {
	_, _, err := Map(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
