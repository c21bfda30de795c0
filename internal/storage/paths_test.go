// internal/storage/paths_test.go
package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestUniquePath_FreePath(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "song")

	// 没有冲突时返回裸名称 (n=0 不带后缀)
	assert.Equal(t, base+".txt", UniquePath(base, ".txt"))
}

func TestUniquePath_SkipsOccupiedSuffixes(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "song")

	touch(t, base+".txt")
	touch(t, base+"_1.txt")
	touch(t, base+"_2.txt")

	assert.Equal(t, base+"_3.txt", UniquePath(base, ".txt"))
}

func TestUniquePath_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "song")

	first := UniquePath(base, ".show")
	touch(t, first)

	second := UniquePath(base, ".show")
	assert.NotEqual(t, first, second)
	assert.Equal(t, base+"_1.show", second)

	touch(t, second)
	assert.Equal(t, base+"_2.show", UniquePath(base, ".show"))
}

func TestUniquePath_ExtensionIndependence(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "song")

	// 同名不同扩展名不算冲突
	touch(t, base+".txt")
	assert.Equal(t, base+".show", UniquePath(base, ".show"))
}
