// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/SlideForgeMCP/internal/config"
	"github.com/Corphon/SlideForgeMCP/internal/di"
	"github.com/Corphon/SlideForgeMCP/internal/services"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// 只从容器获取服务，不再创建新实例
	exportService, ok := container.Get("export").(*services.ExportService)
	if !ok {
		return nil, fmt.Errorf("导出服务未正确初始化")
	}

	renderService, ok := container.Get("render").(*services.RenderService)
	if !ok {
		return nil, fmt.Errorf("渲染服务未正确初始化")
	}

	alertService, ok := container.Get("alerts").(*services.AlertService)
	if !ok {
		return nil, fmt.Errorf("通知服务未正确初始化")
	}

	handler := NewHandler(exportService, renderService, alertService)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// WebSocket 通道
	r.GET("/ws/ui", handler.UIWebSocket)
	r.GET("/ws/render", handler.RenderWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		api.GET("/health", handler.GetHealth)

		exportGroup := api.Group("/export")
		{
			exportGroup.POST("", handler.HandleExport)
			exportGroup.GET("/render/status", handler.GetRenderStatus)
		}

		settingsGroup := api.Group("/settings")
		{
			settingsGroup.POST("/data-folder", handler.UpdateDataFolder)
		}
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
