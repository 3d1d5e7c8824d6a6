package detection

import (
	"encoding/base64"
	"net/http"
	"regexp"
	"strings"

	"honeypress/internal/domain"
	"honeypress/internal/support"
)

const (
	BruteForceAnalyzerName = "brute_force"

	maxQuotedUser = 64
)

var (
	loginPathPattern = regexp.MustCompile(`(?i)(wp-login\.php|/wp-admin/?$|/login|/log-in|/signin|/sign-in|/user/login|/account/login|/administrator/?(index\.php)?$|/admin/?(login|index\.php)?$|/auth/?$|/session/?$)`)
	cmsLoginPattern  = regexp.MustCompile(`(?i)(wp-login\.php|/wp-admin|/administrator)`)
)

var (
	usernameFields = []string{"log", "username", "user", "user_login", "login", "email", "uname", "name", "usr"}
	passwordFields = []string{"pwd", "password", "pass", "passwd", "user_pass", "passw", "pw"}
)

var defaultUsernames = map[string]struct{}{
	"admin": {}, "administrator": {}, "root": {}, "test": {}, "user": {}, "guest": {},
	"demo": {}, "wordpress": {}, "wp": {}, "webmaster": {}, "manager": {}, "support": {},
}

var defaultPasswords = map[string]struct{}{
	"password": {}, "123456": {}, "12345678": {}, "123456789": {}, "admin": {}, "root": {},
	"qwerty": {}, "letmein": {}, "welcome": {}, "test": {}, "password1": {}, "admin123": {},
	"111111": {}, "abc123": {}, "changeme": {}, "toor": {}, "pass": {}, "1234": {},
}

var weakBearerTokens = map[string]struct{}{
	"null": {}, "undefined": {}, "test": {}, "token": {}, "admin": {}, "bearer": {}, "secret": {},
}

const minCredentialLength = 6

// BruteForceAnalyzer flags login attempts against login-shaped endpoints and
// guessed HTTP credentials. Common default credentials score higher.
type BruteForceAnalyzer struct{}

func (BruteForceAnalyzer) Name() string { return BruteForceAnalyzerName }

func (BruteForceAnalyzer) Analyze(req *Request) *domain.DetectionResult {
	var found signals
	categories := []domain.Category{domain.CategoryBruteForce}

	if req.Method == http.MethodPost && loginPathPattern.MatchString(req.Path) {
		username, hasUser := req.FormValue(usernameFields...)
		password, hasPass := req.FormValue(passwordFields...)
		if hasUser && hasPass {
			found.add(loginAttemptLabel(username), credentialScore(username, password, 70))
			if cmsLoginPattern.MatchString(req.Path) {
				categories = append(categories, domain.CategoryCMSLoginBruteForce)
			}
		}
	}

	if auth := strings.TrimSpace(req.Header.Get("Authorization")); auth != "" {
		scheme, value, _ := strings.Cut(auth, " ")
		switch strings.ToLower(scheme) {
		case "basic":
			if user, pass, ok := decodeBasic(value); ok && (isDefaultCredential(user, pass) || len(pass) < minCredentialLength) {
				found.add("guessed basic auth credentials for "+quoteUser(user), credentialScore(user, pass, 70))
			}
		case "bearer":
			token := strings.TrimSpace(value)
			if _, weak := weakBearerTokens[strings.ToLower(token)]; weak || len(token) < 16 {
				found.add("guessed bearer token", 70)
			}
		}
	}

	return found.result(BruteForceAnalyzerName, categories...)
}

// credentialScore raises base for each default half of the pair.
func credentialScore(username, password string, base int) int {
	score := base
	if _, ok := defaultUsernames[strings.ToLower(strings.TrimSpace(username))]; ok {
		score += 5
	}
	if _, ok := defaultPasswords[strings.ToLower(password)]; ok {
		score += 10
	}
	return score
}

func isDefaultCredential(username, password string) bool {
	_, userOK := defaultUsernames[strings.ToLower(strings.TrimSpace(username))]
	_, passOK := defaultPasswords[strings.ToLower(password)]
	return userOK || passOK
}

func decodeBasic(value string) (string, string, bool) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return "", "", false
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	return user, pass, ok
}

func loginAttemptLabel(username string) string {
	return "login attempt as " + quoteUser(username)
}

func quoteUser(username string) string {
	return "'" + support.TruncateUTF8(strings.TrimSpace(username), maxQuotedUser) + "'"
}
