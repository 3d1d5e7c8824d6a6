package detection

import (
	"regexp"
	"strings"

	"honeypress/internal/domain"
	"honeypress/internal/network"
)

const HeaderAnomalyAnalyzerName = "header_anomaly"

var (
	crlfPattern = regexp.MustCompile(`(?i)[\r\n]|%0d|%0a`)

	refererAttackRules = []rule{
		{label: "script in referer", re: regexp.MustCompile(`(?i)<\s*script\b|javascript\s*:`), score: 70},
		{label: "SQL in referer", re: regexp.MustCompile(`(?i)\bunion(\s|\+)+(all(\s|\+)+)?select\b|\bor\b\s+\d+\s*=\s*\d+`), score: 70},
		{label: "traversal in referer", re: regexp.MustCompile(`\.\.[/\\]`), score: 70},
		{label: "JNDI lookup in referer", re: regexp.MustCompile(`(?i)\$\{jndi:`), score: 80},
	}
)

// HeaderAnomalyAnalyzer flags malformed or weaponized request headers.
type HeaderAnomalyAnalyzer struct{}

func (HeaderAnomalyAnalyzer) Name() string { return HeaderAnomalyAnalyzerName }

func (HeaderAnomalyAnalyzer) Analyze(req *Request) *domain.DetectionResult {
	var found signals

	if strings.TrimSpace(req.Host) == "" && strings.TrimSpace(req.Header.Get("Host")) == "" {
		found.add("missing Host header", 50)
	}

	for name, values := range req.Header {
		for _, value := range values {
			if crlfPattern.MatchString(value) {
				found.add("CRLF injection in "+name+" header", 80)
				break
			}
		}
	}

	if referer := req.Header.Get("Referer"); referer != "" {
		found.matchRules(refererAttackRules, decodeVariants(referer))
	}

	for _, value := range req.Header.Values("X-Forwarded-For") {
		if forwardedLoopback(value) {
			found.add("loopback address in X-Forwarded-For", 60)
			break
		}
	}

	return found.result(HeaderAnomalyAnalyzerName, domain.CategoryHacking, domain.CategoryWebAppAttack)
}

func forwardedLoopback(value string) bool {
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "localhost" {
			return true
		}
		if network.MatchesAny(part, loopbackRanges) {
			return true
		}
	}
	return false
}
