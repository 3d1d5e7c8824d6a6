package detection

import "strings"

// benignCrawlers are substrings of well-known search and preview crawlers.
var benignCrawlers = []string{
	"googlebot",
	"google-inspectiontool",
	"adsbot-google",
	"mediapartners-google",
	"bingbot",
	"bingpreview",
	"duckduckbot",
	"applebot",
	"yandexbot",
	"baiduspider",
	"slurp",
	"facebookexternalhit",
	"linkedinbot",
	"twitterbot",
	"slackbot",
	"discordbot",
}

// IsBenignCrawler reports whether userAgent belongs to a recognized legitimate crawler.
func IsBenignCrawler(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return false
	}
	_, ok := containsAny(ua, benignCrawlers)
	return ok
}
