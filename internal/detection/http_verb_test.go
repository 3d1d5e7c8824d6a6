package detection

import (
	"net/http"
	"testing"

	"honeypress/internal/domain"
)

func TestHTTPVerbAnalyzerMethods(t *testing.T) {
	cases := []struct {
		method   string
		minScore int
	}{
		{http.MethodConnect, 75},
		{http.MethodTrace, 70},
		{http.MethodPut, 65},
		{http.MethodDelete, 65},
		{"PROPFIND", 60},
		{"FOOBAR", 65},
	}

	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			req := newTestRequest(t, tc.method, "/", "", nil)
			requireDetection(t, HTTPVerbAnalyzer{}.Analyze(req), tc.minScore, domain.CategoryWebAppAttack)
		})
	}
}

func TestHTTPVerbAnalyzerAllowsStandardMethods(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		requireNoDetection(t, HTTPVerbAnalyzer{}.Analyze(newTestRequest(t, method, "/", "", nil)))
	}
	requireNoDetection(t, HTTPVerbAnalyzer{}.Analyze(newTestRequest(t, http.MethodPost, "/contact", "name=a", nil)))
}

func TestHTTPVerbAnalyzerOverrides(t *testing.T) {
	req := newTestRequest(t, http.MethodPost, "/wp-json/wp/v2/posts/1", "title=x", map[string]string{
		"X-HTTP-Method-Override": "DELETE",
	})
	requireDetection(t, HTTPVerbAnalyzer{}.Analyze(req), 60, domain.CategoryWebAppAttack)

	req = newTestRequest(t, http.MethodGet, "/wp-json/wp/v2/users?_method=put", "", nil)
	res := HTTPVerbAnalyzer{}.Analyze(req)
	requireDetection(t, res, 55, domain.CategoryWebAppAttack)
	if res.Comment() != "method override parameter: PUT" {
		t.Fatalf("comment = %q", res.Comment())
	}
}
