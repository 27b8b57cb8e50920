package debate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDirSignature_SingleFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.md")
	writeFile(t, path, "alpha")

	sig1, err := DirSignature{}.Signature(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, sig1, 16, "签名是 8 字节哈希的十六进制")

	sig2, err := DirSignature{}.Signature(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2, "内容未变签名必须稳定")

	// 长度变化保证大小字段不同
	writeFile(t, path, "alpha beta gamma")
	sig3, err := DirSignature{}.Signature(context.Background(), path)
	require.NoError(t, err)
	assert.NotEqual(t, sig1, sig3, "文件变更后签名必须变化")
}

func TestDirSignature_Directory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n")
	writeFile(t, filepath.Join(dir, "internal", "util.go"), "package internal\n")

	sig1, err := DirSignature{}.Signature(context.Background(), dir)
	require.NoError(t, err)

	sig2, err := DirSignature{}.Signature(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)

	writeFile(t, filepath.Join(dir, "extra.go"), "package main\n\nvar x = 1\n")
	sig3, err := DirSignature{}.Signature(context.Background(), dir)
	require.NoError(t, err)
	assert.NotEqual(t, sig1, sig3, "新增文件后目录签名必须变化")
}

func TestDirSignature_HiddenDirIgnored(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n")
	writeFile(t, filepath.Join(dir, ".git", "config"), "[core]\n")

	sig1, err := DirSignature{}.Signature(context.Background(), dir)
	require.NoError(t, err)

	// .git 下的噪声写入不影响签名
	writeFile(t, filepath.Join(dir, ".git", "config"), "[core]\n\tbare = false\n")
	writeFile(t, filepath.Join(dir, ".git", "FETCH_HEAD"), "deadbeef\n")

	sig2, err := DirSignature{}.Signature(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2, "隐藏目录的变更不得影响签名")
}

func TestDirSignature_MissingPath(t *testing.T) {
	t.Parallel()

	_, err := DirSignature{}.Signature(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat context path")
}

func TestDirSignature_CanceledContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DirSignature{}.Signature(ctx, dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirSignature_MaxFilesCap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "c.txt"), "c")

	// 截断后仍产出可用签名
	sig, err := DirSignature{MaxFiles: 1}.Signature(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, sig, 16)
}
