package detection

import (
	"regexp"
	"strings"

	"honeypress/internal/domain"
)

const SQLInjectionAnalyzerName = "sql_injection"

var sqlInjectionRules = []rule{
	{
		label: "UNION-based injection",
		re:    regexp.MustCompile(`(?i)\bunion(\s|\+|/\*.*?\*/)+(all(\s|\+|/\*.*?\*/)+|distinct(\s|\+)+)?select\b`),
		score: 90,
	},
	{
		label: "boolean-based injection",
		re:    regexp.MustCompile(`(?i)['"\)]\s*\b(or|and|xor)\b\s+('?\w+'?|"\w+")\s*(=|<>|!=|like)\s*('?\w+'?|"\w+")`),
		score: 80,
	},
	{
		label: "tautology",
		re:    regexp.MustCompile(`(?i)\b(or|and)\b\s+(\d+)\s*=\s*(\d+)\b`),
		score: 75,
	},
	{
		label: "time-based blind injection",
		re:    regexp.MustCompile(`(?i)(\bsleep\s*\(\s*\d+|\bbenchmark\s*\(\s*\d+|\bpg_sleep\s*\(|\bwaitfor\s+delay\s+['"])`),
		score: 85,
	},
	{
		label: "stacked query",
		re:    regexp.MustCompile(`(?i);\s*(drop|delete|insert|update|truncate|alter|create|exec|execute|declare|shutdown)\s+\w`),
		score: 85,
	},
	{
		label: "quote followed by comment terminator",
		re:    regexp.MustCompile(`\w'\s*\)?\s*(--|#|/\*)`),
		score: 75,
	},
	{
		label: "schema enumeration",
		re:    regexp.MustCompile(`(?i)\b(information_schema|sysobjects|syscolumns|pg_catalog|mysql\.user|sqlite_master)\b`),
		score: 80,
	},
	{
		label: "error-based or file access function",
		re:    regexp.MustCompile(`(?i)\b(extractvalue|updatexml|load_file|xp_cmdshell)\s*\(|\binto\s+(out|dump)file\b`),
		score: 85,
	},
}

var sqlInjectionTools = []string{
	"sqlmap",
	"havij",
	"sqlninja",
	"bsqlbf",
	"pangolin",
	"jsql",
	"sqlsus",
	"absinthe",
}

// SQLInjectionAnalyzer flags SQL syntax smuggled into request parameters and
// well-known SQL injection tooling.
type SQLInjectionAnalyzer struct{}

func (SQLInjectionAnalyzer) Name() string { return SQLInjectionAnalyzerName }

func (SQLInjectionAnalyzer) Analyze(req *Request) *domain.DetectionResult {
	var found signals

	ua := strings.ToLower(req.UserAgent())
	if tool, ok := containsAny(ua, sqlInjectionTools); ok {
		found.add("SQL injection tool user agent: "+tool, 95)
	}

	found.matchRules(sqlInjectionRules, req.Payloads())

	return found.result(SQLInjectionAnalyzerName, domain.CategorySQLInjection, domain.CategoryCodeInjection)
}
