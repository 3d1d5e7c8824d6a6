package detection

import (
	"net/http"
	"strings"

	"honeypress/internal/domain"
)

const HTTPVerbAnalyzerName = "http_verb"

var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodOptions: {},
}

var methodScores = map[string]int{
	http.MethodConnect: 75,
	http.MethodTrace:   70,
	"TRACK":            70,
	http.MethodPut:     65,
	http.MethodDelete:  65,
	http.MethodPatch:   60,
	"PROPFIND":         60,
	"PROPPATCH":        60,
	"MKCOL":            60,
	"COPY":             60,
	"MOVE":             60,
	"LOCK":             60,
	"UNLOCK":           60,
	"SEARCH":           60,
	"DEBUG":            70,
}

const unknownMethodScore = 65

var methodOverrideHeaders = []string{
	"X-HTTP-Method-Override",
	"X-HTTP-Method",
	"X-Method-Override",
}

// HTTPVerbAnalyzer flags methods a CMS front end never needs and method-override tricks.
type HTTPVerbAnalyzer struct{}

func (HTTPVerbAnalyzer) Name() string { return HTTPVerbAnalyzerName }

func (HTTPVerbAnalyzer) Analyze(req *Request) *domain.DetectionResult {
	var found signals

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if _, ok := allowedMethods[method]; !ok && method != "" {
		score, known := methodScores[method]
		if !known {
			score = unknownMethodScore
		}
		found.add("unexpected HTTP method "+method, score)
	}

	for _, header := range methodOverrideHeaders {
		if value := strings.TrimSpace(req.Header.Get(header)); value != "" {
			found.add("method override header "+header+": "+strings.ToUpper(value), 60)
		}
	}
	if value, ok := lookupValue(req.Query, "_method"); ok && value != "" {
		found.add("method override parameter: "+strings.ToUpper(value), 55)
	} else if value, ok := req.FormValue("_method"); ok && value != "" {
		found.add("method override parameter: "+strings.ToUpper(value), 55)
	}

	return found.result(HTTPVerbAnalyzerName, domain.CategoryWebAppAttack)
}
