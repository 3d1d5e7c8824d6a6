package detection

import (
	"html"
	"net/url"
)

// maxDecodeRounds bounds repeated URL decoding (double-encoding is common, triple is rare).
const maxDecodeRounds = 2

// decodeVariants returns s followed by its successive URL-decoded forms and the
// HTML-unescaped form of the last one. Duplicates are omitted.
func decodeVariants(s string) []string {
	out := []string{s}
	current := s
	for i := 0; i < maxDecodeRounds; i++ {
		decoded, err := url.QueryUnescape(current)
		if err != nil {
			decoded, err = url.PathUnescape(current)
			if err != nil {
				break
			}
		}
		if decoded == current {
			break
		}
		out = append(out, decoded)
		current = decoded
	}

	if unescaped := html.UnescapeString(current); unescaped != current {
		out = append(out, unescaped)
	}
	return out
}
