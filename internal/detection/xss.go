package detection

import (
	"regexp"

	"honeypress/internal/domain"
)

const XSSAnalyzerName = "xss"

var xssRules = []rule{
	{
		label: "script tag",
		re:    regexp.MustCompile(`(?i)<\s*/?\s*script\b`),
		score: 90,
	},
	{
		label: "inline event handler",
		re:    regexp.MustCompile(`(?i)\bon[a-z]{3,24}\s*=\s*["'\x60]?[^"'\x60>]*?(alert|prompt|confirm|eval|fetch|atob|document\.|window\.|javascript:|\()`),
		score: 85,
	},
	{
		label: "javascript URI",
		re:    regexp.MustCompile(`(?i)(javascript|vbscript|livescript)\s*:`),
		score: 85,
	},
	{
		label: "svg/iframe/object vector",
		re:    regexp.MustCompile(`(?i)<\s*(svg|iframe|frame|object|embed|applet|math|base)\b`),
		score: 80,
	},
	{
		label: "img vector",
		re:    regexp.MustCompile(`(?i)<\s*img\b[^>]*\b(on[a-z]+\s*=|src\s*=\s*["']?\s*javascript:)`),
		score: 85,
	},
	{
		label: "DOM access",
		re:    regexp.MustCompile(`(?i)(document\.(cookie|domain|write|location)|window\.location\s*=|String\.fromCharCode\s*\()`),
		score: 80,
	},
	{
		label: "data URI with markup",
		re:    regexp.MustCompile(`(?i)data:\s*text/html`),
		score: 80,
	},
	{
		label: "CSS expression",
		re:    regexp.MustCompile(`(?i)(expression\s*\(\s*(alert|eval|document|window)|-moz-binding\s*:)`),
		score: 80,
	},
}

// XSSAnalyzer flags markup and script injection including encoded variants.
type XSSAnalyzer struct{}

func (XSSAnalyzer) Name() string { return XSSAnalyzerName }

func (XSSAnalyzer) Analyze(req *Request) *domain.DetectionResult {
	var found signals
	found.matchRules(xssRules, req.Payloads())

	return found.result(XSSAnalyzerName, domain.CategoryXSS, domain.CategoryCodeInjection)
}
