package detection

import (
	"regexp"
	"strings"

	"honeypress/internal/domain"
)

const PathTraversalAnalyzerName = "path_traversal"

var (
	rawTraversalRules = []rule{
		{
			label: "encoded traversal sequence",
			re:    regexp.MustCompile(`(?i)(%2e%2e|\.%2e|%2e\.)(%2f|%5c|/|\\)|\.\.(%2f|%5c)`),
			score: 85,
		},
		{
			label: "double-encoded traversal sequence",
			re:    regexp.MustCompile(`(?i)%25(2e|2f|5c)`),
			score: 90,
		},
		{
			label: "overlong UTF-8 traversal",
			re:    regexp.MustCompile(`(?i)%c0%(ae|af)|%c1%(1c|9c)|%e0%80%ae`),
			score: 90,
		},
		{
			label: "null byte injection",
			re:    regexp.MustCompile(`(?i)%00`),
			score: 80,
		},
	}

	decodedTraversalRules = []rule{
		{
			label: "directory traversal sequence",
			re:    regexp.MustCompile(`\.\.[/\\]`),
			score: 80,
		},
		{
			label: "sensitive absolute path",
			re:    regexp.MustCompile(`(?i)(/etc/(passwd|shadow|group|hosts|issue|hostname)\b|/proc/self/(environ|cmdline|fd|maps)|[a-z]:\\windows\\|\bboot\.ini\b|\bwin\.ini\b)`),
			score: 85,
		},
		{
			label: "stream wrapper",
			re:    regexp.MustCompile(`(?i)\b(php|file|zip|phar|expect|glob|compress\.zlib|compress\.bzip2)://`),
			score: 85,
		},
	}
)

// PathTraversalAnalyzer flags attempts to escape the web root or read local files.
type PathTraversalAnalyzer struct{}

func (PathTraversalAnalyzer) Name() string { return PathTraversalAnalyzerName }

func (PathTraversalAnalyzer) Analyze(req *Request) *domain.DetectionResult {
	var found signals

	raw := []string{req.URI, req.Body}
	found.matchRules(rawTraversalRules, raw)

	payloads := req.Payloads()
	found.matchRules(decodedTraversalRules, payloads)

	for _, p := range payloads {
		if strings.ContainsRune(p, '\x00') {
			found.add("null byte injection", 80)
			break
		}
	}

	return found.result(PathTraversalAnalyzerName, domain.CategoryWebAppAttack)
}
