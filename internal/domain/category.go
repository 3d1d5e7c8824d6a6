package domain

// Category is a code from the abuse taxonomy understood by the reporting API.
type Category int

const (
	CategoryHacking            Category = 1
	CategorySQLInjection       Category = 2
	CategoryXSS                Category = 3
	CategoryCodeInjection      Category = 4
	CategoryWebAppAttack       Category = 5
	CategoryBruteForce         Category = 6
	CategoryCMSLoginBruteForce Category = 7
	CategoryBadWebBot          Category = 8
	CategoryScraping           Category = 9
	CategoryConfigFileExposure Category = 10
	CategoryWebSpam            Category = 11
	CategoryXMLRPCAbuse        Category = 12
	CategoryReconnaissance     Category = 13
)

var categoryNames = map[Category]string{
	CategoryHacking:            "Hacking",
	CategorySQLInjection:       "SQL Injection",
	CategoryXSS:                "Cross-Site Scripting",
	CategoryCodeInjection:      "Code Injection",
	CategoryWebAppAttack:       "Web App Attack",
	CategoryBruteForce:         "Brute-Force",
	CategoryCMSLoginBruteForce: "CMS Login Brute-Force",
	CategoryBadWebBot:          "Bad Web Bot",
	CategoryScraping:           "Scraping",
	CategoryConfigFileExposure: "Config File Exposure",
	CategoryWebSpam:            "Web Spam",
	CategoryXMLRPCAbuse:        "XML-RPC Abuse",
	CategoryReconnaissance:     "Reconnaissance",
}

// String returns the display name of the category, or "Unknown".
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether c belongs to the known taxonomy.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}
