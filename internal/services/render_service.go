// internal/services/render_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/storage"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

// RenderState 渲染协调器的状态
type RenderState int32

const (
	RenderIdle RenderState = iota
	RenderLaunching
	RenderLoaded
	RenderRendering
	RenderWriting
	RenderFailed
)

// String 实现 fmt.Stringer
func (s RenderState) String() string {
	switch s {
	case RenderIdle:
		return "idle"
	case RenderLaunching:
		return "launching"
	case RenderLoaded:
		return "loaded"
	case RenderRendering:
		return "rendering"
	case RenderWriting:
		return "writing"
	case RenderFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// HostSession 与渲染宿主之间的双向控制通道
// 由 WebSocket 层在宿主接入时提供
type HostSession interface {
	// Send 推送一条控制消息到宿主
	Send(msg models.RenderMessage) error
	// Capture 把宿主当前渲染的页面捕获为 PDF 字节
	Capture(ctx context.Context, opts models.PDFOptions) ([]byte, error)
	// Close 关闭通道
	Close() error
}

// HostLauncher 启动外部渲染宿主进程
type HostLauncher interface {
	Launch(ctx context.Context, serverURL string) error
}

// ProcessLauncher 通过本机渲染器二进制启动宿主
// 渲染器加载应用自己的 UI 并以 pdf 模式回连 /ws/render
type ProcessLauncher struct {
	BinPath string
}

// Launch 启动渲染宿主进程，不等待其退出
func (l *ProcessLauncher) Launch(ctx context.Context, serverURL string) error {
	if l.BinPath == "" {
		return fmt.Errorf("未配置渲染器路径")
	}

	cmd := exec.Command(l.BinPath, "--server", serverURL, "--mode", "pdf", "--headless")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("启动渲染宿主失败: %w", err)
	}

	// 进程生命周期交由宿主自理，这里只负责回收
	go cmd.Wait()

	return nil
}

// RenderService 管理渲染宿主的生命周期，把实时渲染转成分页文档
// 单个共享宿主句柄: 状态不是 Idle 时新的 PDF 导出请求被拒绝而不是覆盖句柄
type RenderService struct {
	mu      sync.Mutex
	state   RenderState
	host    HostSession
	destDir string
	payload json.RawMessage

	launcher HostLauncher
	writer   *storage.ExportWriter
	alerts   Notifier
	hostURL  string
}

// NewRenderService 创建渲染协调服务
func NewRenderService(launcher HostLauncher, writer *storage.ExportWriter, alerts Notifier, hostURL string) *RenderService {
	return &RenderService{
		state:    RenderIdle,
		launcher: launcher,
		writer:   writer,
		alerts:   alerts,
		hostURL:  hostURL,
	}
}

// State 返回当前状态
func (s *RenderService) State() RenderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartPDFExport 发起分页文档导出
// Idle -> Launching; 宿主被占用时直接拒绝
func (s *RenderService) StartPDFExport(ctx context.Context, req *models.ExportRequest) error {
	payload, err := json.Marshal(req.Shows)
	if err != nil {
		return fmt.Errorf("序列化导出负载失败: %w", err)
	}

	s.mu.Lock()
	if s.state != RenderIdle {
		state := s.state
		s.mu.Unlock()
		return apperrors.NewRenderBusyError(
			fmt.Sprintf("已有分页导出在进行中 (状态: %s)", state))
	}
	s.state = RenderLaunching
	s.destDir = req.Path
	s.payload = payload
	host := s.host
	s.mu.Unlock()

	// 上一批完成后宿主会保持存活，存在时直接复用
	if host != nil {
		return s.pushPayload(host)
	}

	if s.launcher != nil {
		if err := s.launcher.Launch(ctx, s.hostURL); err != nil {
			s.fail(err)
			return err
		}
	}

	return nil
}

// HostReady 渲染宿主完成初始加载并接入 /ws/render 后调用
// Launching -> Loaded; 推送启动模式与导出负载
func (s *RenderService) HostReady(host HostSession) error {
	s.mu.Lock()
	if s.state != RenderLaunching {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("渲染宿主在意外状态下接入: %s", state)
	}
	s.host = host
	s.mu.Unlock()

	return s.pushPayload(host)
}

// pushPayload Launching -> Loaded; 推送启动模式与导出负载
func (s *RenderService) pushPayload(host HostSession) error {
	s.mu.Lock()
	s.state = RenderLoaded
	payload := s.payload
	s.mu.Unlock()

	if err := host.Send(models.NewRenderMessage(models.RenderChannelType, "pdf")); err != nil {
		s.fail(fmt.Errorf("推送启动模式失败: %w", err))
		return err
	}

	msg := models.RenderMessage{Channel: models.RenderChannelPDF, Data: payload}
	if err := host.Send(msg); err != nil {
		s.fail(fmt.Errorf("推送导出负载失败: %w", err))
		return err
	}

	return nil
}

// HandleMessage 处理来自宿主的控制消息
func (s *RenderService) HandleMessage(ctx context.Context, msg models.RenderMessage) {
	switch msg.Channel {
	case models.RenderChannelExport:
		var data models.RenderExportData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			s.fail(fmt.Errorf("解析 EXPORT 消息失败: %w", err))
			return
		}
		s.captureAndWrite(ctx, data)

	case models.RenderChannelDone:
		s.finish(msg.Data)

	default:
		utils.GetLogger().Warnf("渲染宿主发来未知消息: %s", msg.Channel)
	}
}

// captureAndWrite 捕获当前页面并写出
// Loaded/Rendering -> Rendering -> Writing -> Rendering (成功发送 NEXT 后)
func (s *RenderService) captureAndWrite(ctx context.Context, data models.RenderExportData) {
	s.mu.Lock()
	if s.state != RenderLoaded && s.state != RenderRendering {
		state := s.state
		s.mu.Unlock()
		utils.GetLogger().Warnf("忽略 %s 状态下的 EXPORT 消息", state)
		return
	}
	s.state = RenderRendering
	host := s.host
	destDir := s.destDir
	s.mu.Unlock()

	pdf, err := host.Capture(ctx, models.DefaultPDFOptions())
	if err != nil {
		s.fail(fmt.Errorf("捕获页面失败: %w", err))
		return
	}

	s.mu.Lock()
	s.state = RenderWriting
	s.mu.Unlock()

	dir := destDir
	if data.Path != "" {
		dir = data.Path
	}

	if _, err := s.writer.Write(dir, data.Name, ".pdf", pdf); err != nil {
		s.fail(err)
		return
	}

	s.mu.Lock()
	s.state = RenderRendering
	s.mu.Unlock()

	if err := host.Send(models.NewRenderMessage(models.RenderChannelNext, nil)); err != nil {
		s.fail(fmt.Errorf("推送 NEXT 信号失败: %w", err))
	}
}

// finish 宿主报告批次完成: -> Idle，宿主保持存活
func (s *RenderService) finish(raw json.RawMessage) {
	var data models.RenderDoneData
	if len(raw) > 0 {
		json.Unmarshal(raw, &data)
	}

	s.mu.Lock()
	s.state = RenderIdle
	s.destDir = ""
	s.payload = nil
	s.mu.Unlock()

	if s.alerts != nil {
		s.alerts.Alert(models.AlertExported, data.Path)
	}
}

// fail 导出失败: 有宿主时 -> Failed 并拆除，等关闭通知回到 Idle；
// 宿主从未接入时 (如启动失败) 没有关闭通知可等，直接回到 Idle
func (s *RenderService) fail(err error) {
	utils.GetLogger().Errorf("分页导出失败: %v", err)

	s.mu.Lock()
	host := s.host
	if host != nil {
		s.state = RenderFailed
	} else {
		s.state = RenderIdle
		s.destDir = ""
		s.payload = nil
	}
	s.mu.Unlock()

	if s.alerts != nil {
		s.alerts.Alert(models.AlertFailed, err.Error())
	}

	if host != nil {
		host.Close()
	}
}

// HostClosed 宿主通道关闭后释放句柄
// Failed 状态下回到 Idle，允许下一次导出
func (s *RenderService) HostClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.host = nil
	if s.state == RenderFailed || s.state == RenderLaunching {
		s.state = RenderIdle
	}
}
