package domain

const (
	MinScore = 1
	MaxScore = 100
)

// DetectionResult is a single analyzer finding. It is immutable once created.
type DetectionResult struct {
	categories CategoryList
	comment    string
	score      int
	analyzer   string
}

// NewDetectionResult builds a finding, normalizing categories and clamping the score to [1,100].
func NewDetectionResult(analyzer string, score int, comment string, categories ...Category) DetectionResult {
	return DetectionResult{
		categories: NewCategoryList(categories...),
		comment:    comment,
		score:      ClampScore(score),
		analyzer:   analyzer,
	}
}

// ClampScore limits score to the accepted range.
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Categories returns a copy of the finding's categories.
func (r DetectionResult) Categories() CategoryList {
	out := make(CategoryList, len(r.categories))
	copy(out, r.categories)
	return out
}

func (r DetectionResult) Comment() string { return r.comment }
func (r DetectionResult) Score() int { return r.score }
func (r DetectionResult) Analyzer() string { return r.analyzer }
