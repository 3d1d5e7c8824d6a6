package detection

import (
	"net/http"
	"regexp"
	"strings"

	"honeypress/internal/domain"
)

const XMLRPCAnalyzerName = "xmlrpc"

var methodNamePattern = regexp.MustCompile(`(?i)<methodName>\s*([^<\s]+)\s*</methodName>`)

// credentialMethods take a username and password among their parameters.
var credentialMethods = map[string]struct{}{
	"wp.getusersblogs":         {},
	"wp.getusers":              {},
	"wp.getprofile":            {},
	"wp.getoptions":            {},
	"wp.getposts":              {},
	"wp.newpost":               {},
	"wp.uploadfile":            {},
	"wp.getcomments":           {},
	"metaweblog.getusersblogs": {},
	"metaweblog.newpost":       {},
	"blogger.getusersblogs":    {},
	"blogger.getuserinfo":      {},
}

// XMLRPCAnalyzer flags use of the CMS XML-RPC endpoint. Any POST is suspicious;
// amplification, pingback and credential-bearing methods score higher.
type XMLRPCAnalyzer struct{}

func (XMLRPCAnalyzer) Name() string { return XMLRPCAnalyzerName }

func (XMLRPCAnalyzer) Analyze(req *Request) *domain.DetectionResult {
	if !strings.HasSuffix(strings.ToLower(req.Path), "/xmlrpc.php") {
		return nil
	}

	var found signals
	categories := []domain.Category{domain.CategoryXMLRPCAbuse}

	switch req.Method {
	case http.MethodGet, http.MethodHead:
		found.add("XML-RPC endpoint probe", 40)
		categories = append(categories, domain.CategoryReconnaissance)
		return found.result(XMLRPCAnalyzerName, categories...)
	case http.MethodPost:
	default:
		return nil
	}

	found.add("XML-RPC request", 50)

	var credentialCalls int
	for _, match := range methodNamePattern.FindAllStringSubmatch(req.Body, -1) {
		method := strings.ToLower(match[1])
		switch {
		case method == "system.multicall":
			found.add("system.multicall amplification", 90)
			categories = append(categories, domain.CategoryBruteForce)
		case method == "pingback.ping":
			found.add("pingback.ping abuse", 85)
			categories = append(categories, domain.CategoryWebAppAttack)
		case method == "system.listmethods" || method == "demo.sayhello" || method == "demo.addtwonumbers":
			found.add("method enumeration via "+match[1], 60)
			categories = append(categories, domain.CategoryReconnaissance)
		default:
			if _, ok := credentialMethods[method]; ok {
				credentialCalls++
				if credentialCalls == 1 {
					found.add("credential-bearing call "+match[1], 80)
					categories = append(categories, domain.CategoryBruteForce)
				}
			}
		}
	}

	return found.result(XMLRPCAnalyzerName, categories...)
}
