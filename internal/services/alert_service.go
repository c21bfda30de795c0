// internal/services/alert_service.go
package services

import (
	"sync"
	"time"

	"github.com/Corphon/SlideForgeMCP/internal/models"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

// Notifier 出带通知通道
// 导出过程中的失败通过它上报给 UI，而不是同步抛出
type Notifier interface {
	Alert(key string, detail ...string)
}

// AlertSink 接收一条通知的回调，由 WebSocket 层在启动时订阅
type AlertSink func(alert models.Alert)

// AlertService 把通知广播给所有订阅方并写入日志
type AlertService struct {
	mu    sync.RWMutex
	sinks []AlertSink
}

// NewAlertService 创建通知服务
func NewAlertService() *AlertService {
	return &AlertService{}
}

// Subscribe 注册一个通知接收方
func (s *AlertService) Subscribe(sink AlertSink) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sinks = append(s.sinks, sink)
}

// Alert 发送一条通知
// key 为翻译键 (如 export.exported) 或原始错误文本
func (s *AlertService) Alert(key string, detail ...string) {
	alert := models.Alert{
		Channel:   "ALERT",
		Key:       key,
		Timestamp: time.Now(),
	}
	if len(detail) > 0 {
		alert.Detail = detail[0]
	}

	utils.GetLogger().Infof("通知: %s %s", alert.Key, alert.Detail)

	s.mu.RLock()
	sinks := make([]AlertSink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.RUnlock()

	for _, sink := range sinks {
		sink(alert)
	}
}
