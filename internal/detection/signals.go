package detection

import (
	"regexp"
	"strings"

	"honeypress/internal/domain"
)

// extraSignalBonus is added to the strongest signal for every additional one.
const extraSignalBonus = 5

type rule struct {
	label string
	re    *regexp.Regexp
	score int
}

type signal struct {
	label string
	score int
}

type signals []signal

func (s *signals) add(label string, score int) {
	for _, existing := range *s {
		if existing.label == label {
			return
		}
	}
	*s = append(*s, signal{label: label, score: score})
}

// matchRules adds a signal for every rule matching at least one input.
func (s *signals) matchRules(rules []rule, inputs []string) {
	for _, r := range rules {
		for _, input := range inputs {
			if r.re.MatchString(input) {
				s.add(r.label, r.score)
				break
			}
		}
	}
}

func (s signals) empty() bool {
	return len(s) == 0
}

func (s signals) score() int {
	best := 0
	for _, sig := range s {
		if sig.score > best {
			best = sig.score
		}
	}
	if len(s) > 1 {
		best += extraSignalBonus * (len(s) - 1)
	}
	return domain.ClampScore(best)
}

func (s signals) comment() string {
	labels := make([]string, len(s))
	for i, sig := range s {
		labels[i] = sig.label
	}
	return strings.Join(labels, "; ")
}

// result converts the collected signals into a finding, or nil when nothing matched.
func (s signals) result(analyzer string, categories ...domain.Category) *domain.DetectionResult {
	if s.empty() {
		return nil
	}
	res := domain.NewDetectionResult(analyzer, s.score(), s.comment(), categories...)
	return &res
}

func containsAny(haystack string, needles []string) (string, bool) {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return needle, true
		}
	}
	return "", false
}
