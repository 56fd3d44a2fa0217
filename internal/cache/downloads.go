package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/alv/internal/utils"
)

const downloadsDir = "logs"

// SaveLogBody writes a downloaded log body under the cache and returns its path.
// It does not update the record; callers follow up with MarkDownloaded.
func (s *Store) SaveLogBody(alias, id, body string) (string, error) {
	dir := s.downloadDir(alias)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	path := filepath.Join(dir, utils.SafeName(id)+".log")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("failed to write log %s: %w", id, err)
	}

	return path, nil
}

// ReadLogBody reads a previously saved body
func ReadLogBody(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read log body: %w", err)
	}

	return string(data), nil
}

// ExportLog copies a saved body to dest
func ExportLog(path, dest string) error {
	if err := copyFile(path, dest); err != nil {
		return fmt.Errorf("failed to export log to %s: %w", dest, err)
	}

	return nil
}

func (s *Store) downloadDir(alias string) string {
	return filepath.Join(s.root, downloadsDir, utils.SafeName(alias))
}

// copyFile copies a single file, creating parent directories of dst
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer srcFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	return dstFile.Sync()
}
