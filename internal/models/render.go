// internal/models/render.go
package models

import "encoding/json"

// 渲染宿主控制通道的消息类型
const (
	RenderChannelType    = "TYPE"    // 启动模式 (服务端 -> 宿主)
	RenderChannelPDF     = "PDF"     // 导出负载 (服务端 -> 宿主)
	RenderChannelCapture = "CAPTURE" // 页面捕获请求 (服务端 -> 宿主)
	RenderChannelExport  = "EXPORT"  // 页面就绪信号 (宿主 -> 服务端)
	RenderChannelNext    = "NEXT"    // 推进信号 (服务端 -> 宿主)
	RenderChannelDone    = "DONE"    // 批次完成信号 (宿主 -> 服务端)
)

// RenderMessage 与渲染宿主之间交换的控制消息
type RenderMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewRenderMessage 构造携带 JSON 负载的控制消息
// 负载序列化失败时返回只有 channel 的消息，调用方无需处理错误
func NewRenderMessage(channel string, data interface{}) RenderMessage {
	msg := RenderMessage{Channel: channel}
	if data == nil {
		return msg
	}

	if raw, err := json.Marshal(data); err == nil {
		msg.Data = raw
	}
	return msg
}

// RenderExportData EXPORT 消息的负载: 一页已就绪，等待捕获
type RenderExportData struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

// RenderDoneData DONE 消息的负载
type RenderDoneData struct {
	Path string `json:"path"`
}

// PDFOptions 页面捕获的固定设置
type PDFOptions struct {
	MarginTop       float64 `json:"margin_top"`
	MarginBottom    float64 `json:"margin_bottom"`
	MarginLeft      float64 `json:"margin_left"`
	MarginRight     float64 `json:"margin_right"`
	PageSize        string  `json:"page_size"`
	PrintBackground bool    `json:"print_background"`
	Landscape       bool    `json:"landscape"`
}

// DefaultPDFOptions 零边距、固定页面尺寸、打印背景、纵向
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:        "A4",
		PrintBackground: true,
		Landscape:       false,
	}
}
