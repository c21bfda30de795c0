// internal/services/export_service_test.go
package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/storage"
)

// recordingNotifier 记录通知顺序的测试替身
type recordingNotifier struct {
	mu     sync.Mutex
	keys   []string
	detail map[string]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{detail: make(map[string]string)}
}

func (n *recordingNotifier) Alert(key string, detail ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.keys = append(n.keys, key)
	if len(detail) > 0 {
		n.detail[key] = detail[0]
	}
}

func (n *recordingNotifier) Keys() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.keys...)
}

// newTestExportService 组装指向临时目录的导出服务
func newTestExportService(t *testing.T, reveal storage.RevealFunc) (*ExportService, *recordingNotifier) {
	t.Helper()

	writer := storage.NewExportWriterWithReveal(reveal)
	notifier := newRecordingNotifier()

	library, err := storage.NewShowLibrary(t.TempDir())
	require.NoError(t, err)

	svc := NewExportService(
		NewFlattenService(),
		NewRenderService(nil, writer, notifier, ""),
		storage.NewArchiveBuilder(writer),
		writer,
		library,
		notifier,
	)

	return svc, notifier
}

func simpleShow(id, name, text string) *models.Show {
	return &models.Show{
		ID:   id,
		Name: name,
		Slides: map[string]*models.Slide{
			"s1": {Items: []models.Item{{
				Lines: []models.Line{{Runs: []models.TextRun{{Value: text}}}},
			}}},
		},
		Layouts: map[string]*models.Layout{
			"l1": {Slides: []models.LayoutSlideRef{{ID: "s1"}}},
		},
		Settings: models.ShowSettings{ActiveLayout: "l1"},
	}
}

func TestExport_RequiresPath(t *testing.T) {
	svc, _ := newTestExportService(t, nil)

	err := svc.Export(context.Background(), &models.ExportRequest{Kind: models.ExportTxt})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestExport_UnknownKindRejected(t *testing.T) {
	svc, _ := newTestExportService(t, nil)

	err := svc.Export(context.Background(), &models.ExportRequest{
		Kind: models.ExportKind(99),
		Path: t.TempDir(),
	})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestExportShows_WritesNativeDocuments(t *testing.T) {
	svc, notifier := newTestExportService(t, nil)
	dest := t.TempDir()

	req := &models.ExportRequest{
		Kind: models.ExportShow,
		Path: dest,
		Shows: []*models.Show{
			simpleShow("id-1", "First", "one"),
			simpleShow("id-2", "Second", "two"),
		},
	}

	require.NoError(t, svc.Export(context.Background(), req))

	data, err := os.ReadFile(filepath.Join(dest, "First.show"))
	require.NoError(t, err)

	decoded, err := models.DecodeShowFile(data)
	require.NoError(t, err)
	assert.Equal(t, "id-1", decoded.ID)
	assert.Equal(t, "First", decoded.Name)

	_, err = os.Stat(filepath.Join(dest, "Second.show"))
	assert.NoError(t, err)

	keys := notifier.Keys()
	assert.Equal(t, []string{models.AlertExporting, models.AlertExported}, keys)
}

func TestExportTxt_WritesFlattenedText(t *testing.T) {
	svc, _ := newTestExportService(t, nil)
	dest := t.TempDir()

	req := &models.ExportRequest{
		Kind:  models.ExportTxt,
		Path:  dest,
		Shows: []*models.Show{simpleShow("id-1", "Lyrics", "hello")},
	}

	require.NoError(t, svc.Export(context.Background(), req))

	data, err := os.ReadFile(filepath.Join(dest, "Lyrics.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestExportBatch_RevealsFolderOnce(t *testing.T) {
	reveals := 0
	svc, notifier := newTestExportService(t, func(string) { reveals++ })
	dest := t.TempDir()

	req := &models.ExportRequest{
		Kind: models.ExportTxt,
		Path: dest,
		Shows: []*models.Show{
			simpleShow("1", "A", "a"),
			simpleShow("2", "B", "b"),
			simpleShow("3", "C", "c"),
		},
	}

	require.NoError(t, svc.Export(context.Background(), req))

	// 三次写入只展示一次输出目录
	assert.Equal(t, 1, reveals)

	// 完成通知只在最后一项之后发出一次
	exported := 0
	for _, key := range notifier.Keys() {
		if key == models.AlertExported {
			exported++
		}
	}
	assert.Equal(t, 1, exported)
	keys := notifier.Keys()
	assert.Equal(t, models.AlertExported, keys[len(keys)-1])
}

func TestExportBundle_ToleratesMissingAssets(t *testing.T) {
	svc, notifier := newTestExportService(t, nil)
	dest := t.TempDir()

	asset := filepath.Join(dest, "bg.jpg")
	require.NoError(t, os.WriteFile(asset, []byte("jpg"), 0644))

	req := &models.ExportRequest{
		Kind: models.ExportProject,
		Path: dest,
		Bundle: &models.BundleFile{
			Name:    "My Project",
			Content: map[string]interface{}{"name": "My Project"},
			Files:   []string{asset, filepath.Join(dest, "gone.jpg")},
		},
	}

	require.NoError(t, svc.Export(context.Background(), req))

	_, err := os.Stat(filepath.Join(dest, "My Project.project"))
	assert.NoError(t, err)
	assert.Contains(t, notifier.Keys(), models.AlertExported)
}

func TestExportUsage_WritesJSONDump(t *testing.T) {
	svc, _ := newTestExportService(t, nil)
	dest := t.TempDir()

	req := &models.ExportRequest{
		Kind:  models.ExportUsage,
		Path:  dest,
		Usage: map[string]interface{}{"opened": 3},
	}

	require.NoError(t, svc.Export(context.Background(), req))

	data, err := os.ReadFile(filepath.Join(dest, "usage.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"opened\"")
}

func TestExportAllShows_ZeroLoadable(t *testing.T) {
	svc, notifier := newTestExportService(t, nil)
	dest := t.TempDir()
	source := t.TempDir()

	// 只有一个损坏的文档
	require.NoError(t, os.WriteFile(filepath.Join(source, "bad.show"), []byte("not json"), 0644))

	req := &models.ExportRequest{
		Kind:      models.ExportAllShows,
		SubKind:   models.ExportTxt,
		Path:      dest,
		ShowsPath: source,
	}

	require.NoError(t, svc.Export(context.Background(), req))

	// 发出 "0 exported" 通知且不写任何文件
	assert.Contains(t, notifier.Keys(), models.AlertNone)
	assert.Equal(t, "Exported 0 shows!", notifier.detail[models.AlertNone])

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportAllShows_SkipsUnparsable(t *testing.T) {
	svc, _ := newTestExportService(t, nil)
	dest := t.TempDir()
	source := t.TempDir()

	fixtures, err := storage.NewShowLibrary(source)
	require.NoError(t, err)
	require.NoError(t, fixtures.SaveShow(simpleShow("1", "Good One", "la")))
	require.NoError(t, fixtures.SaveShow(simpleShow("2", "Good Two", "di")))
	require.NoError(t, os.WriteFile(filepath.Join(source, "broken.show"), []byte("{"), 0644))

	req := &models.ExportRequest{
		Kind:      models.ExportAllShows,
		SubKind:   models.ExportTxt,
		Path:      dest,
		ShowsPath: source,
	}

	require.NoError(t, svc.Export(context.Background(), req))

	// 产物落在时间戳子目录中，损坏的文档被跳过
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "Exports_"))

	sub, err := os.ReadDir(filepath.Join(dest, entries[0].Name()))
	require.NoError(t, err)
	assert.Len(t, sub, 2)
}

func TestExportAllShows_RejectsUnsupportedSubKind(t *testing.T) {
	svc, _ := newTestExportService(t, nil)

	req := &models.ExportRequest{
		Kind:      models.ExportAllShows,
		SubKind:   models.ExportPDF,
		Path:      t.TempDir(),
		ShowsPath: t.TempDir(),
	}

	err := svc.Export(context.Background(), req)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "a_b", safeFileName("a/b"))
	assert.Equal(t, "untitled", safeFileName(""))
	assert.Equal(t, "My Song", safeFileName("My Song"))
}
