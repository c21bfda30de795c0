// internal/services/export_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/storage"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

// 各导出格式的文件扩展名
const (
	ExtShow     = ".show"
	ExtTxt      = ".txt"
	ExtProject  = ".project"
	ExtTemplate = ".fstemplate"
	ExtTheme    = ".fstheme"
	ExtJSON     = ".json"
)

// ExportService 导出路由: 按请求类型分发到展平/打包/渲染，再经写入器落盘
type ExportService struct {
	Flatten *FlattenService
	Render  *RenderService
	Archive *storage.ArchiveBuilder
	Writer  *storage.ExportWriter
	Library *storage.ShowLibrary
	Alerts  Notifier
}

// NewExportService 创建导出服务
func NewExportService(
	flatten *FlattenService,
	render *RenderService,
	archive *storage.ArchiveBuilder,
	writer *storage.ExportWriter,
	library *storage.ShowLibrary,
	alerts Notifier) *ExportService {

	return &ExportService{
		Flatten: flatten,
		Render:  render,
		Archive: archive,
		Writer:  writer,
		Library: library,
		Alerts:  alerts,
	}
}

// Export 分发一次导出请求
// 对 ExportKind 的穷尽 switch，新类型落到 default 会返回显式错误
func (s *ExportService) Export(ctx context.Context, req *models.ExportRequest) error {
	if req == nil {
		return apperrors.NewValidationError("导出请求不能为空", nil)
	}
	if req.Path == "" {
		return apperrors.NewValidationError("缺少输出目录", nil)
	}

	switch req.Kind {
	case models.ExportPDF:
		return s.Render.StartPDFExport(ctx, req)
	case models.ExportShow:
		return s.exportShows(req)
	case models.ExportTxt:
		return s.exportTexts(req)
	case models.ExportProject:
		return s.exportBundle(req, ExtProject)
	case models.ExportTemplate:
		return s.exportBundle(req, ExtTemplate)
	case models.ExportTheme:
		return s.exportBundle(req, ExtTheme)
	case models.ExportUsage:
		return s.exportUsage(req)
	case models.ExportAllShows:
		return s.exportAllShows(ctx, req)
	default:
		return apperrors.NewValidationError(
			fmt.Sprintf("未处理的导出类型: %v", req.Kind), nil)
	}
}

// exportShows 导出原生 .show 文档
// 顺序写入; 完成通知只在最后一项写完后发出，且只反映最后一项的错误
func (s *ExportService) exportShows(req *models.ExportRequest) error {
	return s.exportEach(req, func(show *models.Show) ([]byte, string, error) {
		data, err := models.EncodeShowFile(show)
		return data, ExtShow, err
	})
}

// exportTexts 导出纯文本
func (s *ExportService) exportTexts(req *models.ExportRequest) error {
	return s.exportEach(req, func(show *models.Show) ([]byte, string, error) {
		return []byte(s.Flatten.FlattenShow(show)), ExtTxt, nil
	})
}

// exportEach 逐个导出批次中的演示文稿
// 单项失败以通知上报后继续，不中断批次; 只有最后一项的错误作为返回值
func (s *ExportService) exportEach(req *models.ExportRequest, encode func(*models.Show) ([]byte, string, error)) error {
	if len(req.Shows) == 0 {
		return apperrors.NewValidationError("没有要导出的演示文稿", nil)
	}

	s.Alerts.Alert(models.AlertExporting)

	var lastErr error
	for i, show := range req.Shows {
		data, ext, err := encode(show)
		if err == nil {
			_, err = s.Writer.Write(req.Path, safeFileName(show.Name), ext, data)
		}

		if err != nil {
			utils.GetLogger().Errorf("导出 %s 失败: %v", show.Name, err)
			s.Alerts.Alert(models.AlertFailed, err.Error())
		}

		// 完成通知只跟随最后一项 (index == len-1)
		if i == len(req.Shows)-1 {
			lastErr = err
			s.Alerts.Alert(models.AlertExported, req.Path)
		}
	}

	return lastErr
}

// exportBundle 导出 project/template/theme 捆绑包
func (s *ExportService) exportBundle(req *models.ExportRequest, ext string) error {
	if req.Bundle == nil {
		return apperrors.NewValidationError("缺少捆绑包内容", nil)
	}

	name := req.Bundle.Name
	if name == "" {
		name = strings.TrimPrefix(ext, ".")
	}

	path, err := s.Archive.Build(req.Bundle.Content, req.Bundle.Files, req.Path, safeFileName(name), ext)
	if err != nil {
		s.Alerts.Alert(models.AlertFailed, err.Error())
		return apperrors.WrapError(err, "导出捆绑包失败", apperrors.ErrorTypeIO)
	}

	utils.GetLogger().Infof("捆绑包已导出: %s", path)
	s.Alerts.Alert(models.AlertExported, req.Path)

	return nil
}

// exportUsage 导出使用记录 JSON
func (s *ExportService) exportUsage(req *models.ExportRequest) error {
	data, err := json.MarshalIndent(req.Usage, "", "    ")
	if err != nil {
		return fmt.Errorf("序列化使用记录失败: %w", err)
	}

	if _, err := s.Writer.Write(req.Path, "usage", ExtJSON, data); err != nil {
		s.Alerts.Alert(models.AlertFailed, err.Error())
		return err
	}

	s.Alerts.Alert(models.AlertExported, req.Path)

	return nil
}

// exportAllShows 批量导出整个演示文稿库
// 解析失败的文档跳过; 一个都没有时只发 "0 exported" 通知，不写任何文件
func (s *ExportService) exportAllShows(ctx context.Context, req *models.ExportRequest) error {
	if req.SubKind != models.ExportShow && req.SubKind != models.ExportTxt {
		return apperrors.NewValidationError(
			fmt.Sprintf("批量导出不支持 %v 格式", req.SubKind), nil)
	}

	library := s.Library
	if req.ShowsPath != "" && (library == nil || library.BaseDir != req.ShowsPath) {
		var err error
		library, err = storage.NewShowLibrary(req.ShowsPath)
		if err != nil {
			return err
		}
	}
	if library == nil {
		return apperrors.NewValidationError("缺少演示文稿库目录", nil)
	}

	names, err := library.ListShowFiles()
	if err != nil {
		return err
	}

	var shows []*models.Show
	for _, name := range names {
		show, err := library.LoadShow(name)
		if err != nil {
			// 解析失败的文档跳过，继续处理其余文档
			utils.GetLogger().Warnf("解析演示文稿失败，已跳过 %s: %v", name, err)
			continue
		}
		shows = append(shows, show)
	}

	if len(shows) == 0 {
		s.Alerts.Alert(models.AlertNone, "Exported 0 shows!")
		return nil
	}

	sub := *req
	sub.Kind = req.SubKind
	sub.Shows = shows
	sub.Path = filepath.Join(req.Path, "Exports_"+time.Now().Format("20060102_150405"))

	return s.Export(ctx, &sub)
}

// safeFileName 清理文件名中的路径分隔符等非法字符
func safeFileName(name string) string {
	if name == "" {
		return "untitled"
	}

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)

	return strings.TrimSpace(replacer.Replace(name))
}
