// internal/storage/library.go
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Corphon/SlideForgeMCP/internal/errors"
	"github.com/Corphon/SlideForgeMCP/internal/models"
)

// ShowExt 演示文稿文档的文件扩展名
const ShowExt = ".show"

// ShowLibrary 提供演示文稿库的文件存储
type ShowLibrary struct {
	BaseDir string

	// 并发控制
	fileLocks sync.Map // 文件级别锁 path -> *sync.RWMutex

	// 简单缓存
	cache       map[string]*cacheEntry
	cacheMutex  sync.RWMutex
	cacheExpiry time.Duration
}

// cacheEntry 缓存条目
type cacheEntry struct {
	show      *models.Show
	timestamp time.Time
}

// NewShowLibrary 创建演示文稿库
func NewShowLibrary(baseDir string) (*ShowLibrary, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建演示文稿目录失败: %w", err)
	}

	return &ShowLibrary{
		BaseDir:     baseDir,
		cache:       make(map[string]*cacheEntry),
		cacheExpiry: 5 * time.Minute,
	}, nil
}

// 获取文件锁
func (lib *ShowLibrary) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := lib.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// ListShowFiles 列出库中所有 .show 文档的文件名
func (lib *ShowLibrary) ListShowFiles() ([]string, error) {
	entries, err := os.ReadDir(lib.BaseDir)
	if err != nil {
		return nil, apperrors.NewIOError("读取演示文稿目录失败", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ShowExt) {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}

// LoadShow 读取并解析一个 .show 文档
func (lib *ShowLibrary) LoadShow(filename string) (*models.Show, error) {
	fullPath := filepath.Join(lib.BaseDir, filename)

	// 检查缓存
	lib.cacheMutex.RLock()
	if entry, exists := lib.cache[fullPath]; exists {
		if time.Since(entry.timestamp) < lib.cacheExpiry {
			lib.cacheMutex.RUnlock()
			return entry.show, nil
		}
	}
	lib.cacheMutex.RUnlock()

	lock := lib.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(
				fmt.Sprintf("演示文稿不存在: %s", filename), err)
		}
		return nil, apperrors.NewIOError(
			fmt.Sprintf("读取演示文稿失败: %s", filename), err)
	}

	show, err := models.DecodeShowFile(content)
	if err != nil {
		return nil, apperrors.NewUnparsableError(
			fmt.Sprintf("解析演示文稿失败: %s", filename), err)
	}

	lib.updateCache(fullPath, show)

	return show, nil
}

// SaveShow 保存一个 .show 文档，原子性写入
func (lib *ShowLibrary) SaveShow(show *models.Show) error {
	data, err := models.EncodeShowFile(show)
	if err != nil {
		return err
	}

	fullPath := filepath.Join(lib.BaseDir, show.Name+ShowExt)

	lock := lib.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return apperrors.NewIOError("保存临时文件失败", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return apperrors.NewIOError("保存演示文稿失败", err)
	}

	lib.invalidateCache(fullPath)

	return nil
}

// 缓存管理
func (lib *ShowLibrary) updateCache(path string, show *models.Show) {
	lib.cacheMutex.Lock()
	defer lib.cacheMutex.Unlock()

	lib.cache[path] = &cacheEntry{
		show:      show,
		timestamp: time.Now(),
	}
}

// invalidateCache 清除指定路径的缓存
func (lib *ShowLibrary) invalidateCache(path string) {
	lib.cacheMutex.Lock()
	defer lib.cacheMutex.Unlock()

	delete(lib.cache, path)
}
