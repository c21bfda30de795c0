// internal/api/websocket.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 控制通道只供本机 UI 与渲染宿主使用
		return true
	},
}

// ========================================
// UI 通知通道
// ========================================

// UIClient 一个已连接的 UI 客户端
type UIClient struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	closed   int32 // 原子操作标志，0=开启，1=关闭
	lastPing time.Time
}

// Close 安全关闭客户端连接
func (c *UIClient) Close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.conn.Close()
	}
}

// IsClosed 检查连接是否已关闭
func (c *UIClient) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// UIManager 管理所有 UI 通知连接
type UIManager struct {
	mutex       sync.RWMutex
	clients     map[string]*UIClient
	pingTimeout time.Duration
	stopCleanup chan struct{}
}

// NewUIManager 创建 UI 连接管理器并启动过期清理
func NewUIManager() *UIManager {
	m := &UIManager{
		clients:     make(map[string]*UIClient),
		pingTimeout: 60 * time.Second,
		stopCleanup: make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

// cleanupLoop 定期清理过期和死连接
func (m *UIManager) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired()
		case <-m.stopCleanup:
			return
		}
	}
}

// cleanupExpired 移除超时或已关闭的客户端
func (m *UIManager) cleanupExpired() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for id, client := range m.clients {
		if client.IsClosed() || time.Since(client.lastPing) > m.pingTimeout {
			client.Close()
			delete(m.clients, id)
		}
	}
}

// register 注册新客户端
func (m *UIManager) register(client *UIClient) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.clients[client.id] = client
	client.lastPing = time.Now()

	utils.GetLogger().Infof("UI 客户端已连接: %s", client.id)
}

// unregister 注销客户端
func (m *UIManager) unregister(client *UIClient) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.clients, client.id)
	client.Close()

	utils.GetLogger().Infof("UI 客户端已断开: %s", client.id)
}

// Broadcast 把通知推送给所有 UI 客户端
// 队列满的客户端丢弃该条消息，不阻塞广播
func (m *UIManager) Broadcast(alert models.Alert) {
	data, err := json.Marshal(alert)
	if err != nil {
		utils.GetLogger().Errorf("序列化通知失败: %v", err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, client := range m.clients {
		if client.IsClosed() {
			continue
		}
		select {
		case client.send <- data:
		default:
			utils.GetLogger().Warnf("UI 客户端 %s 消息队列已满，消息被丢弃", client.id)
		}
	}
}

// Shutdown 关闭所有连接并停止清理
func (m *UIManager) Shutdown() {
	close(m.stopCleanup)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for id, client := range m.clients {
		client.Close()
		delete(m.clients, id)
	}
}

// Count 当前连接数
func (m *UIManager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// serveUIClient 升级连接并进入读写循环
func (m *UIManager) serveUIClient(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.GetLogger().Errorf("升级 UI WebSocket 失败: %v", err)
		return
	}

	client := &UIClient{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, 64),
		lastPing: time.Now(),
	}

	m.register(client)

	go m.writePump(client)
	go m.readPump(client)
}

// writePump 把通知写到连接
func (m *UIManager) writePump(client *UIClient) {
	defer client.Close()

	for data := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readPump 只处理 pong 与关闭
func (m *UIManager) readPump(client *UIClient) {
	defer m.unregister(client)

	client.conn.SetPongHandler(func(string) error {
		m.mutex.Lock()
		client.lastPing = time.Now()
		m.mutex.Unlock()
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ========================================
// 渲染宿主控制通道
// ========================================

// captureResult 一次页面捕获的结果
type captureResult struct {
	data []byte
	err  error
}

// renderHostSession 渲染宿主的 WebSocket 会话，实现 services.HostSession
type renderHostSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	captureMu sync.Mutex
	pending   chan captureResult
}

// Send 推送一条控制消息到宿主
func (s *renderHostSession) Send(msg models.RenderMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(msg)
}

// Capture 请求宿主捕获当前页面，等待二进制响应
// 同一时刻只允许一次在途捕获；不设超时，由调用方的 ctx 控制
func (s *renderHostSession) Capture(ctx context.Context, opts models.PDFOptions) ([]byte, error) {
	s.captureMu.Lock()
	pending := make(chan captureResult, 1)
	s.pending = pending
	s.captureMu.Unlock()

	if err := s.Send(models.NewRenderMessage(models.RenderChannelCapture, opts)); err != nil {
		return nil, fmt.Errorf("推送捕获请求失败: %w", err)
	}

	select {
	case res := <-pending:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deliverCapture 把宿主返回的页面字节交给等待中的捕获请求
func (s *renderHostSession) deliverCapture(data []byte, err error) {
	s.captureMu.Lock()
	pending := s.pending
	s.pending = nil
	s.captureMu.Unlock()

	if pending == nil {
		utils.GetLogger().Warnf("收到未请求的页面数据，已丢弃")
		return
	}

	pending <- captureResult{data: data, err: err}
}

// Close 关闭通道，在途的捕获请求以错误结束
func (s *renderHostSession) Close() error {
	s.captureMu.Lock()
	pending := s.pending
	s.pending = nil
	s.captureMu.Unlock()

	if pending != nil {
		pending <- captureResult{err: fmt.Errorf("渲染宿主通道已关闭")}
	}

	return s.conn.Close()
}
