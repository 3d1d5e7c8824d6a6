package detection

import (
	"regexp"
	"strings"

	"honeypress/internal/domain"
)

const ConfigAccessAnalyzerName = "config_access"

// sensitiveFileCatalog is checked in order; the highest-scoring match wins.
var sensitiveFileCatalog = []rule{
	{label: "environment file", re: regexp.MustCompile(`(?i)/\.env(\.[a-z0-9_-]+)?(\.(bak|old|save|swp|txt))?$`), score: 85},
	{label: "git metadata", re: regexp.MustCompile(`(?i)/\.git(/|$)`), score: 85},
	{label: "VCS metadata", re: regexp.MustCompile(`(?i)/\.(svn|hg|bzr)(/|$)`), score: 80},
	{label: "CMS config backup", re: regexp.MustCompile(`(?i)/wp-config\.php(\.|~|_|-)[a-z0-9]*$|/wp-config\.(bak|old|save|txt|orig)$`), score: 85},
	{label: "CMS config", re: regexp.MustCompile(`(?i)/(wp-config|configuration|config|settings|local\.settings|localsettings)\.php$`), score: 80},
	{label: "database dump", re: regexp.MustCompile(`(?i)\.(sql|sql\.gz|sql\.zip|sql\.bz2|sqlite|sqlite3|db|dump|mdb)$`), score: 85},
	{label: "backup archive", re: regexp.MustCompile(`(?i)/(backup|backups|site|www|wwwroot|html|public_html|db|database)\.(zip|tar|tar\.gz|tgz|rar|7z)$`), score: 80},
	{label: "cloud credentials", re: regexp.MustCompile(`(?i)/\.(aws/credentials|aws/config|docker/config\.json|kube/config|azure/)`), score: 85},
	{label: "SSH key", re: regexp.MustCompile(`(?i)/(\.ssh/|id_rsa|id_dsa|id_ecdsa|id_ed25519)`), score: 85},
	{label: "htpasswd", re: regexp.MustCompile(`(?i)/\.htpasswd$`), score: 85},
	{label: "htaccess", re: regexp.MustCompile(`(?i)/\.htaccess$`), score: 75},
	{label: "application config", re: regexp.MustCompile(`(?i)/(config|settings|secrets|credentials|parameters|appsettings)\.(json|ya?ml|xml|ini|toml)$`), score: 80},
	{label: "deployment manifest", re: regexp.MustCompile(`(?i)/(docker-compose\.ya?ml|dockerfile|\.npmrc|\.pypirc|composer\.(json|lock)|web\.config)$`), score: 75},
	{label: "diagnostic page", re: regexp.MustCompile(`(?i)/(phpinfo|info|test|i)\.php$|/server-(status|info)$`), score: 70},
	{label: "editor artifacts", re: regexp.MustCompile(`(?i)/\.ds_store$|/\.(idea|vscode)/|\.(swp|swo)$`), score: 70},
	{label: "debug log", re: regexp.MustCompile(`(?i)/(debug|error|error_log|access)\.log$|/wp-content/debug\.log$`), score: 75},
}

// ConfigAccessAnalyzer flags requests for files that leak configuration or credentials.
type ConfigAccessAnalyzer struct{}

func (ConfigAccessAnalyzer) Name() string { return ConfigAccessAnalyzerName }

func (ConfigAccessAnalyzer) Analyze(req *Request) *domain.DetectionResult {
	path := req.Path
	if path == "" {
		path, _, _ = strings.Cut(req.URI, "?")
	}

	var best *rule
	for _, candidate := range decodeVariants(path) {
		for i := range sensitiveFileCatalog {
			entry := &sensitiveFileCatalog[i]
			if !entry.re.MatchString(candidate) {
				continue
			}
			if best == nil || entry.score > best.score {
				best = entry
			}
		}
	}
	if best == nil {
		return nil
	}

	res := domain.NewDetectionResult(ConfigAccessAnalyzerName, best.score, best.label+" requested: "+path,
		domain.CategoryConfigFileExposure, domain.CategoryHacking)
	return &res
}
