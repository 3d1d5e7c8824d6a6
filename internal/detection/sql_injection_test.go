package detection

import (
	"net/http"
	"testing"

	"honeypress/internal/domain"
)

func TestSQLInjectionAnalyzerDetectsUnionSelect(t *testing.T) {
	req := newTestRequest(t, http.MethodGet, "/page?id=1'%20UNION%20SELECT%20username,password%20FROM%20users--", "", nil)

	res := SQLInjectionAnalyzer{}.Analyze(req)
	requireDetection(t, res, 75, domain.CategorySQLInjection, domain.CategoryCodeInjection)
	if res.Analyzer() != SQLInjectionAnalyzerName {
		t.Fatalf("analyzer = %q", res.Analyzer())
	}
}

func TestSQLInjectionAnalyzerVariants(t *testing.T) {
	cases := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"boolean", http.MethodGet, "/item?id=1'%20OR%20'1'='1", ""},
		{"tautology", http.MethodGet, "/item?id=1%20or%201=1", ""},
		{"time based", http.MethodGet, "/item?id=1%20AND%20SLEEP(5)", ""},
		{"stacked", http.MethodGet, "/item?id=1;%20DROP%20TABLE%20users", ""},
		{"post body", http.MethodPost, "/contact", "email=x%27+UNION+ALL+SELECT+NULL%2CNULL--"},
		{"schema enumeration", http.MethodGet, "/item?id=(select%20table_name%20from%20information_schema.tables)", ""},
		{"double encoded", http.MethodGet, "/item?id=1%2527%2520union%2520select%25201", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := newTestRequest(t, tc.method, tc.target, tc.body, nil)
			requireDetection(t, SQLInjectionAnalyzer{}.Analyze(req), 75, domain.CategorySQLInjection)
		})
	}
}

func TestSQLInjectionAnalyzerToolUserAgent(t *testing.T) {
	req := newTestRequest(t, http.MethodGet, "/", "", map[string]string{"User-Agent": "sqlmap/1.7.2#stable (https://sqlmap.org)"})
	requireDetection(t, SQLInjectionAnalyzer{}.Analyze(req), 90, domain.CategorySQLInjection)
}

func TestSQLInjectionAnalyzerIgnoresPlainText(t *testing.T) {
	for _, target := range []string{
		"/?s=union+station+opening+hours",
		"/?s=select+your+plan",
		"/blog/rock-or-roll",
		"/?p=42&order=desc",
	} {
		req := newTestRequest(t, http.MethodGet, target, "", nil)
		requireNoDetection(t, SQLInjectionAnalyzer{}.Analyze(req))
	}
}
