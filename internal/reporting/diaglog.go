package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

const (
	DefaultDiagnosticMaxBytes int64 = 5 << 20

	diagTimeLayout = "2006-01-02 15:04:05"
	rotatedSuffix  = ".1.gz"
)

// DiagnosticLog is an append-only record of failed report attempts. Once the
// file grows past maxBytes it is compressed to <path>.1.gz and started afresh.
type DiagnosticLog struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
}

func NewDiagnosticLog(path string, maxBytes int64) *DiagnosticLog {
	if maxBytes <= 0 {
		maxBytes = DefaultDiagnosticMaxBytes
	}
	return &DiagnosticLog{path: path, maxBytes: maxBytes}
}

func (d *DiagnosticLog) Path() string {
	return d.path
}

// FormatLine renders one diagnostic entry, newline-terminated.
func FormatLine(at time.Time, ip string, status int, errMsg, response string) string {
	return fmt.Sprintf("[%s] IP=%s HTTP=%d Error=%s Response=%s\n",
		at.Format(diagTimeLayout), ip, status, singleLine(errMsg), singleLine(truncate(response, excerptLength)))
}

func singleLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// Append writes one line stamped at and rotates the file when it has grown too large.
func (d *DiagnosticLog) Append(at time.Time, ip string, status int, errMsg, response string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dir := filepath.Dir(d.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("diagnostic log: create directory: %w", err)
		}
	}

	f, err := os.OpenFile(d.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("diagnostic log: open: %w", err)
	}

	line := FormatLine(at, ip, status, errMsg, response)
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("diagnostic log: write: %w", err)
	}

	info, statErr := f.Stat()
	if err := f.Close(); err != nil {
		return fmt.Errorf("diagnostic log: close: %w", err)
	}
	if statErr == nil && info.Size() > d.maxBytes {
		return d.rotate()
	}
	return nil
}

// rotate compresses the current file over the previous archive and truncates it.
// Callers hold d.mu.
func (d *DiagnosticLog) rotate() error {
	src, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("diagnostic log: rotate open: %w", err)
	}
	defer src.Close()

	archive := d.path + rotatedSuffix
	tmp := archive + ".tmp"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("diagnostic log: rotate create: %w", err)
	}

	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		_ = zw.Close()
		_ = dst.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("diagnostic log: rotate compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("diagnostic log: rotate flush: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("diagnostic log: rotate close: %w", err)
	}
	if err := os.Rename(tmp, archive); err != nil {
		return fmt.Errorf("diagnostic log: rotate rename: %w", err)
	}
	return os.Truncate(d.path, 0)
}
