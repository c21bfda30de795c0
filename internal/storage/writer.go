// internal/storage/writer.go
package storage

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

// RevealFunc 在系统文件管理器中展示输出目录
type RevealFunc func(dir string)

// ExportWriter 导出文件写入器
// 会话内第一次成功写入后展示一次输出目录，之后不再触发
// "已展示" 标志是写入器实例自己的字段，每个会话构造新实例即可复位
type ExportWriter struct {
	mu       sync.Mutex
	revealed bool
	reveal   RevealFunc
}

// NewExportWriter 创建导出写入器，默认用系统文件管理器展示目录
func NewExportWriter() *ExportWriter {
	return &ExportWriter{reveal: OpenFolder}
}

// NewExportWriterWithReveal 创建使用自定义展示函数的写入器，reveal 可为 nil
func NewExportWriterWithReveal(reveal RevealFunc) *ExportWriter {
	return &ExportWriter{reveal: reveal}
}

// Write 在 dir 下分配唯一路径并一次性写入
// 返回最终写入的路径
func (w *ExportWriter) Write(dir, name, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.NewIOError("创建输出目录失败", err)
	}

	path := UniquePath(filepath.Join(dir, name), ext)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", apperrors.NewIOError("写入导出文件失败", err)
	}

	w.revealOnce(dir)

	return path, nil
}

// revealOnce 第一次成功写入后展示输出目录，整个会话只触发一次
func (w *ExportWriter) revealOnce(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.revealed || w.reveal == nil {
		return
	}

	w.revealed = true
	w.reveal(dir)
}

// Revealed 返回本会话是否已展示过输出目录
func (w *ExportWriter) Revealed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.revealed
}

// OpenFolder 在系统文件管理器中打开目录
func OpenFolder(dir string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}

	if err := cmd.Start(); err != nil {
		utils.GetLogger().Warnf("打开输出目录失败 %s: %v", dir, err)
	}
}
