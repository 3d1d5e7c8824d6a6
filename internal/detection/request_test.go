package detection

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRequestRestoresBody(t *testing.T) {
	httpReq := httptest.NewRequest(http.MethodPost, "/wp-login.php?redirect_to=%2Fwp-admin%2F", strings.NewReader("log=admin&pwd=secret"))
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	req := NewRequest(httpReq, DefaultBodyLimit)
	if req.Body != "log=admin&pwd=secret" {
		t.Fatalf("Body = %q", req.Body)
	}
	if got, _ := req.FormValue("LOG"); got != "admin" {
		t.Fatalf("FormValue(LOG) = %q, want admin", got)
	}
	if req.Path != "/wp-login.php" || req.Query.Get("redirect_to") != "/wp-admin/" {
		t.Fatalf("path/query = %q %v", req.Path, req.Query)
	}

	rest, err := io.ReadAll(httpReq.Body)
	if err != nil {
		t.Fatalf("read restored body: %v", err)
	}
	if string(rest) != "log=admin&pwd=secret" {
		t.Fatalf("restored body = %q", rest)
	}
}

func TestNewRequestTruncatesBody(t *testing.T) {
	payload := strings.Repeat("a", 100)
	httpReq := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	httpReq.Header.Set("Content-Type", "text/plain")

	req := NewRequest(httpReq, 10)
	if len(req.Body) != 10 {
		t.Fatalf("len(Body) = %d, want 10", len(req.Body))
	}
	if len(req.Form) != 0 {
		t.Fatalf("non-form body parsed as form: %v", req.Form)
	}

	rest, _ := io.ReadAll(httpReq.Body)
	if string(rest) != payload {
		t.Fatalf("restored body has %d bytes, want %d", len(rest), len(payload))
	}
}

func TestRequestPayloadsIncludeDecodedVariants(t *testing.T) {
	req := newTestRequest(t, http.MethodGet, "/search?q=%253Cb%253E", "", nil)

	payloads := req.Payloads()
	want := []string{"%3Cb%3E", "<b>"}
	for _, w := range want {
		found := false
		for _, p := range payloads {
			if p == w {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("payloads %q missing %q", payloads, w)
		}
	}

	seen := make(map[string]bool)
	for _, p := range payloads {
		if seen[p] {
			t.Fatalf("duplicate payload %q", p)
		}
		seen[p] = true
	}
}

func TestParamValuesMatchesQueryAndForm(t *testing.T) {
	req := newTestRequest(t, http.MethodPost, "/go?URL=http://a.example", "url=http://b.example&other=x", nil)

	values := req.ParamValues("url")
	if len(values) != 2 {
		t.Fatalf("ParamValues = %v, want 2 values", values)
	}
}

func TestDecodeVariants(t *testing.T) {
	got := decodeVariants("%2526lt%253B")
	want := []string{"%2526lt%253B", "%26lt%3B", "&lt;", "<"}
	if len(got) != len(want) {
		t.Fatalf("decodeVariants = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("decodeVariants[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if plain := decodeVariants("hello"); len(plain) != 1 || plain[0] != "hello" {
		t.Fatalf("decodeVariants(plain) = %q", plain)
	}
}
