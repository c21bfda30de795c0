// internal/models/export.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// ExportKind 导出请求的封闭类型集合
// 新增类型必须在 ExportService.Export 的 switch 中显式处理
type ExportKind int

const (
	ExportPDF ExportKind = iota
	ExportShow
	ExportTxt
	ExportProject
	ExportTemplate
	ExportTheme
	ExportUsage
	ExportAllShows
)

// String 实现 fmt.Stringer
func (k ExportKind) String() string {
	switch k {
	case ExportPDF:
		return "pdf"
	case ExportShow:
		return "show"
	case ExportTxt:
		return "txt"
	case ExportProject:
		return "project"
	case ExportTemplate:
		return "template"
	case ExportTheme:
		return "theme"
	case ExportUsage:
		return "usage"
	case ExportAllShows:
		return "all_shows"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseExportKind 从请求字符串解析导出类型
func ParseExportKind(s string) (ExportKind, error) {
	switch strings.ToLower(s) {
	case "pdf":
		return ExportPDF, nil
	case "show":
		return ExportShow, nil
	case "txt":
		return ExportTxt, nil
	case "project":
		return ExportProject, nil
	case "template":
		return ExportTemplate, nil
	case "theme":
		return ExportTheme, nil
	case "usage":
		return ExportUsage, nil
	case "all_shows":
		return ExportAllShows, nil
	default:
		return 0, fmt.Errorf("不支持的导出类型: %s", s)
	}
}

// ExportRequest 一次导出请求
type ExportRequest struct {
	TaskID string     `json:"task_id"`
	Kind   ExportKind `json:"kind"`

	// Path 输出目录
	Path string `json:"path"`

	// Shows show/txt/pdf 导出的内容
	Shows []*Show `json:"shows,omitempty"`

	// Bundle project/template/theme 导出的清单与资源
	Bundle *BundleFile `json:"bundle,omitempty"`

	// Usage usage 导出的任意 JSON 内容
	Usage interface{} `json:"usage,omitempty"`

	// ShowsPath all_shows 导出的源目录
	ShowsPath string `json:"shows_path,omitempty"`
	// SubKind all_shows 导出的子格式 (show 或 txt)
	SubKind ExportKind `json:"sub_kind,omitempty"`
}

// BundleFile project/template/theme 的清单对象与引用的资源文件
// Files 中的路径不预先验证，打包时逐个检查
type BundleFile struct {
	Name    string                 `json:"name"`
	Content map[string]interface{} `json:"content"`
	Files   []string               `json:"files,omitempty"`
}

// ExportResult 单个产物的导出结果
type ExportResult struct {
	TaskID      string    `json:"task_id"`
	Kind        string    `json:"kind"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Alert 推送到 UI 的出带通知
// Key 为翻译键 (如 export.exported) 或原始错误文本
type Alert struct {
	Channel   string    `json:"channel"`
	Key       string    `json:"key"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// 常用的通知翻译键
const (
	AlertExporting = "export.exporting"
	AlertExported  = "export.exported"
	AlertNone      = "export.none"
	AlertFailed    = "export.failed"
)
