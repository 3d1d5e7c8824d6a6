package detection

import (
	"regexp"
	"strconv"
	"strings"

	"honeypress/internal/domain"
)

const FormSpamAnalyzerName = "form_spam"

// DecoyFieldNames are hidden form fields rendered for bots only; humans leave them empty.
var DecoyFieldNames = []string{"website_hp", "hp_website", "url_confirm", "fax_number", "contact_me_by_fax_only"}

var spamKeywords = []string{
	"viagra", "cialis", "levitra", "casino", "poker online", "porn", "payday loan",
	"crypto investment", "bitcoin doubler", "buy followers", "seo services", "backlinks",
	"replica watches", "forex signals", "work from home", "make money fast", "weight loss pills",
	"cheap essay", "escort",
}

var plainTextFields = []string{"name", "author", "first_name", "last_name", "subject", "email", "phone", "company", "title"}

var (
	urlPattern        = regexp.MustCompile(`(?i)https?://`)
	markupPattern     = regexp.MustCompile(`(?i)<\s*[a-z!/][^>]*>|\[url=|\[link=`)
	excessiveURLCount = 3
	floodURLCount     = 6
)

// FormSpamAnalyzer flags comment and contact form spam.
type FormSpamAnalyzer struct{}

func (FormSpamAnalyzer) Name() string { return FormSpamAnalyzerName }

func (FormSpamAnalyzer) Analyze(req *Request) *domain.DetectionResult {
	if len(req.Form) == 0 {
		return nil
	}

	var found signals

	for _, field := range DecoyFieldNames {
		if value, ok := req.FormValue(field); ok && strings.TrimSpace(value) != "" {
			found.add("decoy field "+field+" filled", 80)
			break
		}
	}

	var all strings.Builder
	for key, values := range req.Form {
		if isPasswordField(key) {
			continue
		}
		for _, v := range values {
			all.WriteString(v)
			all.WriteByte('\n')
		}
	}
	text := strings.ToLower(all.String())

	var hits []string
	for _, keyword := range spamKeywords {
		if strings.Contains(text, keyword) {
			hits = append(hits, keyword)
		}
	}
	switch {
	case len(hits) >= 2:
		found.add("spam keywords: "+strings.Join(hits, ", "), 70)
	case len(hits) == 1:
		found.add("spam keyword: "+hits[0], 55)
	}

	switch urls := len(urlPattern.FindAllStringIndex(text, -1)); {
	case urls >= floodURLCount:
		found.add(strconv.Itoa(urls)+" embedded URLs", 75)
	case urls >= excessiveURLCount:
		found.add(strconv.Itoa(urls)+" embedded URLs", 60)
	}

	for _, field := range plainTextFields {
		if value, ok := req.FormValue(field); ok && markupPattern.MatchString(value) {
			found.add("markup in plain-text field "+field, 65)
			break
		}
	}

	return found.result(FormSpamAnalyzerName, domain.CategoryWebSpam)
}

func isPasswordField(key string) bool {
	for _, name := range passwordFields {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}
