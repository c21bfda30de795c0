// internal/storage/writer_test.go
package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
)

func TestExportWriter_Write(t *testing.T) {
	dir := t.TempDir()
	w := NewExportWriterWithReveal(nil)

	path, err := w.Write(dir, "hello", ".txt", []byte("content"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hello.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestExportWriter_CollisionSuffix(t *testing.T) {
	dir := t.TempDir()
	w := NewExportWriterWithReveal(nil)

	first, err := w.Write(dir, "hello", ".txt", []byte("a"))
	require.NoError(t, err)

	second, err := w.Write(dir, "hello", ".txt", []byte("b"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "hello.txt"), first)
	assert.Equal(t, filepath.Join(dir, "hello_1.txt"), second)

	// 先前写入的文件不会被合并或覆盖
	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestExportWriter_RevealsFolderOnce(t *testing.T) {
	dir := t.TempDir()

	var revealed []string
	w := NewExportWriterWithReveal(func(d string) {
		revealed = append(revealed, d)
	})

	for i := 0; i < 3; i++ {
		_, err := w.Write(dir, "item", ".txt", []byte("x"))
		require.NoError(t, err)
	}

	// 会话内只展示一次输出目录
	require.Len(t, revealed, 1)
	assert.Equal(t, dir, revealed[0])
	assert.True(t, w.Revealed())
}

func TestExportWriter_FreshSessionRevealsAgain(t *testing.T) {
	dir := t.TempDir()

	count := 0
	reveal := func(string) { count++ }

	w1 := NewExportWriterWithReveal(reveal)
	_, err := w1.Write(dir, "a", ".txt", []byte("x"))
	require.NoError(t, err)

	// 新会话构造新写入器，标志随实例复位
	w2 := NewExportWriterWithReveal(reveal)
	_, err = w2.Write(dir, "b", ".txt", []byte("x"))
	require.NoError(t, err)

	assert.Equal(t, 2, count)
}

func TestExportWriter_NoRevealOnFailure(t *testing.T) {
	dir := t.TempDir()

	// 目标是只读目录，写入应失败且不触发展示
	readonly := filepath.Join(dir, "ro")
	require.NoError(t, os.MkdirAll(readonly, 0555))

	count := 0
	w := NewExportWriterWithReveal(func(string) { count++ })

	_, err := w.Write(readonly, "a", ".txt", []byte("x"))
	if err == nil {
		t.Skip("以特权用户运行，无法模拟写入失败")
	}

	assert.True(t, apperrors.IsIOError(err))
	assert.Equal(t, 0, count)
	assert.False(t, w.Revealed())
}
