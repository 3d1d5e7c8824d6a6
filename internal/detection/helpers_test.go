package detection

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"honeypress/internal/domain"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

func newTestRequest(t *testing.T, method, target, body string, headers map[string]string) *Request {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	httpReq := httptest.NewRequest(method, target, reader)
	httpReq.Header.Set("User-Agent", browserUA)
	if body != "" {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	return NewRequest(httpReq, DefaultBodyLimit)
}

func requireDetection(t *testing.T, res *domain.DetectionResult, minScore int, categories ...domain.Category) {
	t.Helper()

	if res == nil {
		t.Fatalf("expected a detection, got nil")
	}
	if res.Score() < minScore {
		t.Fatalf("score = %d, want >= %d (comment %q)", res.Score(), minScore, res.Comment())
	}
	got := res.Categories()
	for _, c := range categories {
		if !got.Contains(c) {
			t.Fatalf("categories = %v, missing %s", got, c)
		}
	}
}

func requireNoDetection(t *testing.T, res *domain.DetectionResult) {
	t.Helper()

	if res != nil {
		t.Fatalf("expected no detection, got score %d comment %q", res.Score(), res.Comment())
	}
}
