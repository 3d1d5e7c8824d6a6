package detection

import (
	"strings"

	"honeypress/internal/domain"
)

const UserAgentAnalyzerName = "user_agent"

// attackTools are scanners and exploitation frameworks.
var attackTools = []string{
	"nikto", "sqlmap", "nmap", "masscan", "zgrab", "nuclei", "wpscan", "dirbuster",
	"gobuster", "dirb/", "ffuf", "feroxbuster", "acunetix", "nessus", "openvas", "w3af",
	"whatweb", "wfuzz", "hydra", "zmeu", "jorgee", "morfeus", "netsparker", "arachni",
	"skipfish", "joomscan", "droopescan", "cmsmap", "commix", "xsstrike", "l9explore",
	"fuzz faster u fool", "burp", "owasp zap", "metasploit",
}

// scrapingClients are generic HTTP libraries rarely used by real visitors.
var scrapingClients = []string{
	"python-requests", "python-urllib", "aiohttp", "go-http-client", "curl/", "wget/",
	"libwww-perl", "lwp::simple", "scrapy", "httpclient", "okhttp", "java/", "node-fetch",
	"axios/", "guzzlehttp", "mechanize", "httpie", "winhttp", "powershell",
}

// UserAgentAnalyzer flags scanner, tool and empty user agents. Browsers and
// recognized crawlers are ignored.
type UserAgentAnalyzer struct{}

func (UserAgentAnalyzer) Name() string { return UserAgentAnalyzerName }

func (UserAgentAnalyzer) Analyze(req *Request) *domain.DetectionResult {
	ua := strings.TrimSpace(req.UserAgent())
	if ua == "" {
		res := domain.NewDetectionResult(UserAgentAnalyzerName, 40, "empty user agent", domain.CategoryBadWebBot)
		return &res
	}
	if IsBenignCrawler(ua) {
		return nil
	}

	lower := strings.ToLower(ua)
	if tool, ok := containsAny(lower, attackTools); ok {
		res := domain.NewDetectionResult(UserAgentAnalyzerName, 85, "scanner user agent: "+tool, domain.CategoryBadWebBot)
		return &res
	}
	if client, ok := containsAny(lower, scrapingClients); ok {
		res := domain.NewDetectionResult(UserAgentAnalyzerName, 50, "scripted client user agent: "+client,
			domain.CategoryBadWebBot, domain.CategoryScraping)
		return &res
	}
	return nil
}
