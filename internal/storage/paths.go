// internal/storage/paths.go
package storage

import (
	"fmt"
	"os"
)

// UniquePath 返回一个当前未被占用的输出路径
// 依次尝试 base+ext, base_1+ext, base_2+ext ... 直到探测到空位
// 只做只读探测；同进程内顺序写入时不会冲突，并发批次之间不保证
func UniquePath(basePath, ext string) string {
	for n := 0; ; n++ {
		path := basePath + ext
		if n > 0 {
			path = fmt.Sprintf("%s_%d%s", basePath, n, ext)
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}
