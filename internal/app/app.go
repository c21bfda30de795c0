// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/Corphon/SlideForgeMCP/internal/config"
	"github.com/Corphon/SlideForgeMCP/internal/di"
	"github.com/Corphon/SlideForgeMCP/internal/services"
	"github.com/Corphon/SlideForgeMCP/internal/storage"
	"github.com/Corphon/SlideForgeMCP/internal/utils"
)

// App 应用实例
type App struct {
	config   *config.AppConfig
	server   *http.Server
	stopChan chan os.Signal
}

var (
	instance *App
	appOnce  sync.Once
)

// GetApp 获取应用实例（单例模式）
func GetApp() *App {
	appOnce.Do(func() {
		instance = &App{
			stopChan: make(chan os.Signal, 1),
		}
	})
	return instance
}

// Initialize 初始化配置、日志与服务
func Initialize() error {
	app := GetApp()

	baseConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		return fmt.Errorf("初始化配置系统失败: %w", err)
	}
	app.config = config.GetCurrentConfig()

	if err := initLogger(app.config.LogDir); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}

	if err := InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	return nil
}

// initLogger 初始化日志系统，日志文件按天命名
func initLogger(logDir string) error {
	logFile := filepath.Join(logDir, time.Now().Format("2006-01-02")+".log")
	return utils.InitLogger(logFile)
}

// InitServices 按依赖顺序初始化所有服务并注册到容器
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	// 基础服务
	alertService := services.NewAlertService()
	container.Register("alerts", alertService)

	writer := storage.NewExportWriter()
	container.Register("writer", writer)

	library, err := storage.NewShowLibrary(cfg.ShowsDir)
	if err != nil {
		return fmt.Errorf("初始化演示文稿库失败: %w", err)
	}
	container.Register("library", library)

	// 依赖基础服务的服务
	flattenService := services.NewFlattenService()
	container.Register("flatten", flattenService)

	archiveBuilder := storage.NewArchiveBuilder(writer)
	container.Register("archive", archiveBuilder)

	hostURL := fmt.Sprintf("ws://localhost:%s/ws/render", cfg.Port)
	launcher := &services.ProcessLauncher{BinPath: cfg.RendererPath}
	renderService := services.NewRenderService(launcher, writer, alertService, hostURL)
	container.Register("render", renderService)

	exportService := services.NewExportService(
		flattenService, renderService, archiveBuilder, writer, library, alertService)
	container.Register("export", exportService)

	return nil
}

// Run 启动 HTTP 服务器并等待关闭信号
func (a *App) Run(handler http.Handler) error {
	a.server = &http.Server{
		Addr:    ":" + a.config.Port,
		Handler: handler,
	}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.GetLogger().Errorf("启动服务器失败: %v", err)
		}
	}()

	utils.GetLogger().Infof("服务器启动在端口 %s", a.config.Port)

	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	<-a.stopChan

	utils.GetLogger().Infof("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}

	utils.GetLogger().Infof("服务器优雅关闭完成")
	return nil
}

// GetConfig 返回应用配置
func (a *App) GetConfig() *config.AppConfig {
	return a.config
}
