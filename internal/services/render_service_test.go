// internal/services/render_service_test.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/storage"
)

// fakeHost 记录发送的控制消息并返回预设的捕获结果
type fakeHost struct {
	mu         sync.Mutex
	sent       []models.RenderMessage
	captureErr error
	closed     bool
}

func (h *fakeHost) Send(msg models.RenderMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, msg)
	return nil
}

func (h *fakeHost) Capture(ctx context.Context, opts models.PDFOptions) ([]byte, error) {
	if h.captureErr != nil {
		return nil, h.captureErr
	}
	return []byte("%PDF-1.4 fake"), nil
}

func (h *fakeHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHost) channels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.sent))
	for _, msg := range h.sent {
		out = append(out, msg.Channel)
	}
	return out
}

// fakeLauncher 记录启动次数，不真正拉起进程
type fakeLauncher struct {
	launches int
	err      error
}

func (l *fakeLauncher) Launch(ctx context.Context, serverURL string) error {
	l.launches++
	return l.err
}

func newTestRenderService(launcher HostLauncher) (*RenderService, *recordingNotifier) {
	notifier := newRecordingNotifier()
	writer := storage.NewExportWriterWithReveal(nil)
	return NewRenderService(launcher, writer, notifier, "ws://localhost:0/ws/render"), notifier
}

func pdfRequest(dir string) *models.ExportRequest {
	return &models.ExportRequest{
		Kind:  models.ExportPDF,
		Path:  dir,
		Shows: []*models.Show{simpleShow("1", "Deck", "hello")},
	}
}

func TestRenderService_FullExportFlow(t *testing.T) {
	dir := t.TempDir()
	launcher := &fakeLauncher{}
	svc, notifier := newTestRenderService(launcher)

	require.NoError(t, svc.StartPDFExport(context.Background(), pdfRequest(dir)))
	assert.Equal(t, RenderLaunching, svc.State())
	assert.Equal(t, 1, launcher.launches)

	// 宿主接入后收到启动模式与导出负载
	host := &fakeHost{}
	require.NoError(t, svc.HostReady(host))
	assert.Equal(t, RenderLoaded, svc.State())
	assert.Equal(t, []string{models.RenderChannelType, models.RenderChannelPDF}, host.channels())

	// 宿主报告第一页就绪: 捕获、写出、推进
	exportData, _ := json.Marshal(models.RenderExportData{Name: "Deck", Type: "pdf"})
	svc.HandleMessage(context.Background(), models.RenderMessage{
		Channel: models.RenderChannelExport,
		Data:    exportData,
	})

	assert.Equal(t, RenderRendering, svc.State())
	assert.Contains(t, host.channels(), models.RenderChannelNext)

	data, err := os.ReadFile(filepath.Join(dir, "Deck.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))

	// 批次完成: 回到 Idle，宿主保持存活以便复用
	doneData, _ := json.Marshal(models.RenderDoneData{Path: dir})
	svc.HandleMessage(context.Background(), models.RenderMessage{
		Channel: models.RenderChannelDone,
		Data:    doneData,
	})

	assert.Equal(t, RenderIdle, svc.State())
	assert.False(t, host.closed)
	assert.Contains(t, notifier.Keys(), models.AlertExported)
}

func TestRenderService_RejectsConcurrentExport(t *testing.T) {
	dir := t.TempDir()
	launcher := &fakeLauncher{}
	svc, _ := newTestRenderService(launcher)

	require.NoError(t, svc.StartPDFExport(context.Background(), pdfRequest(dir)))

	// 宿主被占用时第二次请求被拒绝而不是排队
	err := svc.StartPDFExport(context.Background(), pdfRequest(dir))
	require.Error(t, err)
	assert.True(t, apperrors.IsRenderBusyError(err))
	assert.Equal(t, 1, launcher.launches)
}

func TestRenderService_LaunchFailureAllowsRetry(t *testing.T) {
	dir := t.TempDir()
	launcher := &fakeLauncher{err: errors.New("no renderer binary")}
	svc, notifier := newTestRenderService(launcher)

	err := svc.StartPDFExport(context.Background(), pdfRequest(dir))
	require.Error(t, err)
	assert.Contains(t, notifier.Keys(), models.AlertFailed)

	// 宿主从未接入，没有关闭通知可等: 失败后必须直接回到空闲，
	// 否则渲染器配置修好之前的一次坏启动会永久卡死 PDF 导出
	assert.Equal(t, RenderIdle, svc.State())

	launcher.err = nil
	require.NoError(t, svc.StartPDFExport(context.Background(), pdfRequest(dir)))
	assert.Equal(t, RenderLaunching, svc.State())
	assert.Equal(t, 2, launcher.launches)
}

func TestRenderService_CaptureFailureTearsDownHost(t *testing.T) {
	dir := t.TempDir()
	svc, notifier := newTestRenderService(&fakeLauncher{})

	require.NoError(t, svc.StartPDFExport(context.Background(), pdfRequest(dir)))

	host := &fakeHost{captureErr: errors.New("page crashed")}
	require.NoError(t, svc.HostReady(host))

	exportData, _ := json.Marshal(models.RenderExportData{Name: "Deck"})
	svc.HandleMessage(context.Background(), models.RenderMessage{
		Channel: models.RenderChannelExport,
		Data:    exportData,
	})

	assert.Equal(t, RenderFailed, svc.State())
	assert.True(t, host.closed)
	assert.Contains(t, notifier.Keys(), models.AlertFailed)

	svc.HostClosed()
	assert.Equal(t, RenderIdle, svc.State())
}

func TestRenderService_ReusesLiveHost(t *testing.T) {
	dir := t.TempDir()
	launcher := &fakeLauncher{}
	svc, _ := newTestRenderService(launcher)

	require.NoError(t, svc.StartPDFExport(context.Background(), pdfRequest(dir)))
	host := &fakeHost{}
	require.NoError(t, svc.HostReady(host))

	doneData, _ := json.Marshal(models.RenderDoneData{Path: dir})
	svc.HandleMessage(context.Background(), models.RenderMessage{
		Channel: models.RenderChannelDone,
		Data:    doneData,
	})
	require.Equal(t, RenderIdle, svc.State())

	// 宿主仍存活: 第二批直接推送负载，不再拉起新进程
	require.NoError(t, svc.StartPDFExport(context.Background(), pdfRequest(dir)))
	assert.Equal(t, 1, launcher.launches)
	assert.Equal(t, RenderLoaded, svc.State())

	channels := host.channels()
	assert.Equal(t, 4, len(channels))
	assert.Equal(t, models.RenderChannelPDF, channels[len(channels)-1])
}

func TestRenderService_IgnoresUnknownChannel(t *testing.T) {
	svc, notifier := newTestRenderService(&fakeLauncher{})

	svc.HandleMessage(context.Background(), models.RenderMessage{Channel: "BOGUS"})

	// 未知消息只记日志，不改变状态
	assert.Equal(t, RenderIdle, svc.State())
	assert.Empty(t, notifier.Keys())
}

func TestRenderService_HostReadyInWrongState(t *testing.T) {
	svc, _ := newTestRenderService(&fakeLauncher{})

	// 没有进行中的导出时宿主接入被拒绝
	err := svc.HostReady(&fakeHost{})
	assert.Error(t, err)
}
