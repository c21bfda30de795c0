// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Corphon/SlideForgeMCP/internal/config"
	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/services"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

// 入站导出请求的 channel 值
const (
	ChannelGenerate = "GENERATE"
	ChannelTemplate = "TEMPLATE"
	ChannelTheme    = "THEME"
	ChannelUsage    = "USAGE"
	ChannelAllShows = "ALL_SHOWS"
)

// Handler API 处理器
type Handler struct {
	ExportService *services.ExportService
	RenderService *services.RenderService
	AlertService  *services.AlertService
	UIManager     *UIManager
	Response      *ResponseHelper
}

// NewHandler 创建 API 处理器
func NewHandler(
	exportService *services.ExportService,
	renderService *services.RenderService,
	alertService *services.AlertService) *Handler {

	h := &Handler{
		ExportService: exportService,
		RenderService: renderService,
		AlertService:  alertService,
		UIManager:     NewUIManager(),
		Response:      &ResponseHelper{},
	}

	// 出带通知经 WebSocket 推送到所有 UI 客户端
	alertService.Subscribe(h.UIManager.Broadcast)

	return h
}

// exportEnvelope 入站导出请求信封: { channel, data }
type exportEnvelope struct {
	Channel string        `json:"channel"`
	Data    exportPayload `json:"data"`
}

// exportPayload 各导出类型共享的请求负载
type exportPayload struct {
	Path      string             `json:"path,omitempty"`
	Type      string             `json:"type,omitempty"`
	Name      string             `json:"name,omitempty"`
	Shows     []*models.Show     `json:"shows,omitempty"`
	ShowsPath string             `json:"showsPath,omitempty"`
	File      *models.BundleFile `json:"file,omitempty"`
	Content   json.RawMessage    `json:"content,omitempty"`
}

// HandleExport 接收导出请求并分发
func (h *Handler) HandleExport(c *gin.Context) {
	var envelope exportEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		h.Response.BadRequest(c, "无法解析导出请求", err.Error())
		return
	}

	req, err := h.buildRequest(&envelope)
	if err != nil {
		h.Response.BadRequest(c, "无效的导出请求", err.Error())
		return
	}

	if err := h.ExportService.Export(c.Request.Context(), req); err != nil {
		if apperrors.IsRenderBusyError(err) {
			h.Response.Conflict(c, "渲染宿主被占用", err.Error())
			return
		}
		if apperrors.IsValidationError(err) {
			h.Response.BadRequest(c, "导出请求被拒绝", err.Error())
			return
		}
		h.Response.InternalError(c, "导出失败", err.Error())
		return
	}

	h.Response.Success(c, gin.H{"task_id": req.TaskID})
}

// buildRequest 把入站信封转换为类型化的导出请求
// data.path 缺失时退回配置的默认导出目录 (没有交互式目录选择)
func (h *Handler) buildRequest(envelope *exportEnvelope) (*models.ExportRequest, error) {
	data := envelope.Data

	path := data.Path
	if path == "" {
		path = config.GetCurrentConfig().ExportDir
	}
	if path == "" {
		return nil, fmt.Errorf("缺少输出目录且未配置默认导出目录")
	}

	req := &models.ExportRequest{
		TaskID: uuid.NewString(),
		Path:   path,
	}

	switch envelope.Channel {
	case ChannelGenerate:
		kind, err := models.ParseExportKind(data.Type)
		if err != nil {
			return nil, err
		}
		switch kind {
		case models.ExportPDF, models.ExportShow, models.ExportTxt:
			req.Kind = kind
			req.Shows = data.Shows
		case models.ExportProject:
			req.Kind = kind
			req.Bundle = data.File
		default:
			return nil, fmt.Errorf("GENERATE 不支持 %s 类型", data.Type)
		}

	case ChannelTemplate:
		req.Kind = models.ExportTemplate
		req.Bundle = data.File

	case ChannelTheme:
		req.Kind = models.ExportTheme
		req.Bundle = data.File

	case ChannelUsage:
		req.Kind = models.ExportUsage
		var usage interface{}
		if len(data.Content) > 0 {
			if err := json.Unmarshal(data.Content, &usage); err != nil {
				return nil, fmt.Errorf("解析使用记录失败: %w", err)
			}
		}
		req.Usage = usage

	case ChannelAllShows:
		subKind, err := models.ParseExportKind(data.Type)
		if err != nil {
			return nil, err
		}
		req.Kind = models.ExportAllShows
		req.SubKind = subKind
		req.ShowsPath = data.ShowsPath

	default:
		return nil, fmt.Errorf("未知的请求通道: %s", envelope.Channel)
	}

	if req.Bundle == nil && (req.Kind == models.ExportProject ||
		req.Kind == models.ExportTemplate || req.Kind == models.ExportTheme) {
		return nil, fmt.Errorf("缺少捆绑包内容")
	}

	return req, nil
}

// GetRenderStatus 查询渲染协调器状态
func (h *Handler) GetRenderStatus(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"state": h.RenderService.State().String(),
	})
}

// UpdateDataFolder 更新默认导出目录
func (h *Handler) UpdateDataFolder(c *gin.Context) {
	var body struct {
		Path string `json:"path"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.Response.BadRequest(c, "无法解析请求", err.Error())
		return
	}

	if err := config.UpdateDataFolder(body.Path); err != nil {
		h.Response.BadRequest(c, "更新数据目录失败", err.Error())
		return
	}

	h.Response.Success(c, gin.H{"path": body.Path})
}

// UIWebSocket UI 通知通道
func (h *Handler) UIWebSocket(c *gin.Context) {
	h.UIManager.serveUIClient(c.Writer, c.Request)
}

// RenderWebSocket 渲染宿主控制通道
// 宿主完成初始加载后接入；接入即视为 Loaded 就绪信号
func (h *Handler) RenderWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Errorf("升级渲染 WebSocket 失败: %v", err)
		return
	}

	session := &renderHostSession{conn: conn}

	if err := h.RenderService.HostReady(session); err != nil {
		utils.GetLogger().Errorf("渲染宿主接入被拒绝: %v", err)
		conn.Close()
		return
	}

	// 读取循环: 二进制帧是页面捕获结果，文本帧是控制消息
	defer func() {
		session.Close()
		h.RenderService.HostClosed()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			session.deliverCapture(data, nil)

		case websocket.TextMessage:
			var msg models.RenderMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				utils.GetLogger().Warnf("解析渲染宿主消息失败: %v", err)
				continue
			}
			// 异步处理: EXPORT 的页面捕获要等待后续二进制帧，
			// 不能阻塞读取循环
			go h.RenderService.HandleMessage(context.Background(), msg)
		}
	}
}

// GetHealth 健康检查
func (h *Handler) GetHealth(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":       "ok",
		"ui_clients":   h.UIManager.Count(),
		"render_state": h.RenderService.State().String(),
	})
}
