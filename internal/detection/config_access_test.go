package detection

import (
	"net/http"
	"testing"

	"honeypress/internal/domain"
)

func TestConfigAccessAnalyzer(t *testing.T) {
	cases := []struct {
		target string
		score  int
	}{
		{"/.env", 85},
		{"/laravel/.env.production", 85},
		{"/.git/config", 85},
		{"/wp-config.php.bak", 85},
		{"/wp-config.old", 85},
		{"/backup.sql", 85},
		{"/.aws/credentials", 85},
		{"/.htpasswd", 85},
		{"/config.json", 80},
		{"/docker-compose.yml", 75},
		{"/phpinfo.php", 70},
		{"/%2eenv", 85},
	}

	for _, tc := range cases {
		t.Run(tc.target, func(t *testing.T) {
			req := newTestRequest(t, http.MethodGet, tc.target, "", nil)
			res := ConfigAccessAnalyzer{}.Analyze(req)
			requireDetection(t, res, tc.score, domain.CategoryConfigFileExposure, domain.CategoryHacking)
			if res.Score() != tc.score {
				t.Fatalf("score = %d, want %d", res.Score(), tc.score)
			}
		})
	}
}

func TestConfigAccessAnalyzerIgnoresContent(t *testing.T) {
	for _, target := range []string{"/about", "/wp-login.php", "/2024/05/environment-news/", "/?file=.env"} {
		requireNoDetection(t, ConfigAccessAnalyzer{}.Analyze(newTestRequest(t, http.MethodGet, target, "", nil)))
	}
}
