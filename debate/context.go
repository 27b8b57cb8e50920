package debate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxSignatureFiles 目录签名遍历的文件数上限
const maxSignatureFiles = 4096

// ContextProvider 把上下文路径解析为内容签名。签名变化意味着
// 上下文内容变了,依赖该路径的缓存条目随之作废。
type ContextProvider interface {
	Signature(ctx context.Context, path string) (string, error)
}

// DirSignature 用文件名、大小与修改时间对目录树做内容签名。
// 不读文件内容;隐藏目录跳过,大目录按固定上限截断遍历。
type DirSignature struct {
	// MaxFiles 遍历上限,0 用默认值
	MaxFiles int
}

// Signature 计算路径签名。路径可以是单个文件或目录;
// 路径不存在或不可遍历时返回错误,由调用方降级处理。
func (d DirSignature) Signature(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat context path: %w", err)
	}

	h := sha256.New()
	if !info.IsDir() {
		fmt.Fprintf(h, "%s|%d|%d\n", filepath.Base(path), info.Size(), info.ModTime().UnixNano())
		return hex.EncodeToString(h.Sum(nil)[:8]), nil
	}

	limit := d.MaxFiles
	if limit <= 0 {
		limit = maxSignatureFiles
	}

	count := 0
	walkErr := filepath.WalkDir(path, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			// 不可读的子树跳过,签名只覆盖可见部分
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if entry.IsDir() {
			if p != path && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if count >= limit {
			return filepath.SkipAll
		}
		count++

		fi, ierr := entry.Info()
		if ierr != nil {
			return nil
		}
		rel, rerr := filepath.Rel(path, p)
		if rerr != nil {
			rel = p
		}
		fmt.Fprintf(h, "%s|%d|%d\n", rel, fi.Size(), fi.ModTime().UnixNano())
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("failed to walk context path: %w", walkErr)
	}

	return hex.EncodeToString(h.Sum(nil)[:8]), nil
}
