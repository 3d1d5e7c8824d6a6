package detection

import (
	"net/url"
	"strconv"
	"strings"

	"honeypress/internal/domain"
	"honeypress/internal/network"
)

const SSRFAnalyzerName = "ssrf"

// ssrfParams are parameter names commonly used to carry a redirect or fetch target.
var ssrfParams = []string{
	"url", "uri", "u", "link", "href", "src", "source", "image", "img", "file",
	"redirect", "redirect_to", "redirect_uri", "redirecturl", "return", "return_to",
	"returnurl", "return_url", "next", "continue", "target", "dest", "destination",
	"callback", "feed", "host", "site", "domain", "proxy", "remote", "fetch", "load",
}

var ssrfSchemes = map[string]int{
	"gopher": 90,
	"dict":   90,
	"file":   85,
	"ldap":   85,
	"tftp":   85,
	"jar":    85,
	"netdoc": 85,
	"ftp":    70,
	"sftp":   70,
}

var metadataHosts = []string{
	"169.254.169.254",
	"169.254.170.2",
	"100.100.100.200",
	"fd00:ec2::254",
	"metadata.google.internal",
	"metadata.azure.com",
	"metadata",
}

var (
	loopbackRanges  = []string{"127.0.0.0/8", "::1/128", "0.0.0.0/8"}
	linkLocalRanges = []string{"169.254.0.0/16", "fe80::/10"}
	privateRanges   = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7", "100.64.0.0/10"}
)

// SSRFAnalyzer flags internal or dangerous targets placed in redirect/fetch parameters.
type SSRFAnalyzer struct{}

func (SSRFAnalyzer) Name() string { return SSRFAnalyzerName }

func (SSRFAnalyzer) Analyze(req *Request) *domain.DetectionResult {
	var found signals

	for _, value := range req.ParamValues(ssrfParams...) {
		for _, candidate := range decodeVariants(strings.TrimSpace(value)) {
			inspectSSRFTarget(&found, candidate)
		}
	}

	return found.result(SSRFAnalyzerName, domain.CategoryWebAppAttack)
}

func inspectSSRFTarget(found *signals, value string) {
	if value == "" {
		return
	}
	lower := strings.ToLower(value)

	if scheme, _, ok := strings.Cut(lower, ":"); ok {
		if score, dangerous := ssrfSchemes[scheme]; dangerous {
			found.add("dangerous scheme "+scheme+":", score)
		}
	}

	host := extractHost(lower)
	if host == "" {
		return
	}

	for _, meta := range metadataHosts {
		if host == meta {
			found.add("cloud metadata endpoint "+host, 90)
			return
		}
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		found.add("loopback target "+host, 80)
		return
	}

	ip := normalizeNumericHost(host)
	if !network.IsValidAddress(ip) {
		return
	}

	switch {
	case network.MatchesAny(ip, loopbackRanges):
		found.add("loopback target "+ip, 80)
	case network.MatchesAny(ip, linkLocalRanges):
		found.add("link-local target "+ip, 80)
	case network.MatchesAny(ip, privateRanges):
		found.add("private network target "+ip, 75)
	}
}

// extractHost pulls the host out of absolute, scheme-relative and bare "host/path" values.
func extractHost(value string) string {
	candidate := value
	if strings.HasPrefix(candidate, "//") {
		candidate = "http:" + candidate
	} else if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Hostname(), "[]")
}

// normalizeNumericHost converts decimal (2130706433) and hex (0x7f000001) IPv4
// notations to dotted form; other hosts are returned unchanged.
func normalizeNumericHost(host string) string {
	var (
		n   uint64
		err error
	)
	switch {
	case strings.HasPrefix(host, "0x"):
		n, err = strconv.ParseUint(host[2:], 16, 32)
	case host != "" && strings.Trim(host, "0123456789") == "":
		n, err = strconv.ParseUint(host, 10, 32)
	default:
		return host
	}
	if err != nil {
		return host
	}
	return strconv.FormatUint(n>>24&0xFF, 10) + "." +
		strconv.FormatUint(n>>16&0xFF, 10) + "." +
		strconv.FormatUint(n>>8&0xFF, 10) + "." +
		strconv.FormatUint(n&0xFF, 10)
}
