// internal/storage/archive.go
package storage

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

// ManifestEntryName 归档中清单条目的固定名称
const ManifestEntryName = "data.json"

// ArchiveBuilder 把清单与引用的资源文件组装成单个捆绑包
type ArchiveBuilder struct {
	Writer *ExportWriter
}

// NewArchiveBuilder 创建归档构建器
func NewArchiveBuilder(writer *ExportWriter) *ArchiveBuilder {
	return &ArchiveBuilder{Writer: writer}
}

// Build 组装清单与资源文件并写出
// filePaths 为空时走快速路径: 直接写出纯 JSON 清单文档，不建归档
// 单个资源文件读取失败只记录并跳过，绝不中断整个导出
func (b *ArchiveBuilder) Build(manifest interface{}, filePaths []string, destDir, name, ext string) (string, error) {
	content, err := json.MarshalIndent(manifest, "", "    ")
	if err != nil {
		return "", fmt.Errorf("序列化清单失败: %w", err)
	}

	if len(filePaths) == 0 {
		return b.Writer.Write(destDir, name, ext, content)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, path := range filePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			// 资源缺失或不可读: 跳过该文件，继续打包
			utils.GetLogger().Warnf("%v",
				apperrors.NewMissingSourceError("打包资源失败，已跳过 "+path, err))
			continue
		}

		entry, err := zw.Create(filepath.Base(path))
		if err != nil {
			zw.Close()
			return "", fmt.Errorf("创建归档条目失败 %s: %w", path, err)
		}

		if _, err := entry.Write(data); err != nil {
			zw.Close()
			return "", fmt.Errorf("写入归档条目失败 %s: %w", path, err)
		}
	}

	entry, err := zw.Create(ManifestEntryName)
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("创建清单条目失败: %w", err)
	}

	if _, err := entry.Write(content); err != nil {
		zw.Close()
		return "", fmt.Errorf("写入清单条目失败: %w", err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("关闭归档失败: %w", err)
	}

	return b.Writer.Write(destDir, name, ext, buf.Bytes())
}
