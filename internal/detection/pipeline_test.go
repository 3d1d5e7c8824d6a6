package detection

import (
	"net/http"
	"testing"

	"honeypress/internal/domain"
)

type staticAnalyzer struct {
	name     string
	category domain.Category
	fire     bool
}

func (a staticAnalyzer) Name() string { return a.name }

func (a staticAnalyzer) Analyze(*Request) *domain.DetectionResult {
	if !a.fire {
		return nil
	}
	res := domain.NewDetectionResult(a.name, 60, a.name+" fired", a.category)
	return &res
}

type panickingAnalyzer struct{}

func (panickingAnalyzer) Name() string { return "panicky" }

func (panickingAnalyzer) Analyze(*Request) *domain.DetectionResult {
	panic("boom")
}

type emptyCategoryAnalyzer struct{}

func (emptyCategoryAnalyzer) Name() string { return "empty" }

func (emptyCategoryAnalyzer) Analyze(*Request) *domain.DetectionResult {
	res := domain.NewDetectionResult("empty", 50, "no categories")
	return &res
}

func TestPipelineCollectsInRegistrationOrder(t *testing.T) {
	pipeline := NewPipeline([]Analyzer{
		staticAnalyzer{name: "first", category: domain.CategoryHacking, fire: true},
		staticAnalyzer{name: "silent", category: domain.CategoryWebSpam},
		staticAnalyzer{name: "second", category: domain.CategoryXSS, fire: true},
	})

	results := pipeline.Analyze(newTestRequest(t, http.MethodGet, "/", "", nil))
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Analyzer() != "first" || results[1].Analyzer() != "second" {
		t.Fatalf("results out of order: %s, %s", results[0].Analyzer(), results[1].Analyzer())
	}
}

func TestPipelineIsolatesPanickingAnalyzer(t *testing.T) {
	analyzers := []Analyzer{
		staticAnalyzer{name: "before", category: domain.CategoryHacking, fire: true},
		staticAnalyzer{name: "after", category: domain.CategoryXSS, fire: true},
	}
	req := newTestRequest(t, http.MethodGet, "/", "", nil)

	baseline := NewPipeline(analyzers).Analyze(req)

	var failures []string
	withPanic := NewPipeline(
		[]Analyzer{analyzers[0], panickingAnalyzer{}, analyzers[1]},
		WithFailureHook(func(name string) { failures = append(failures, name) }),
	).Analyze(req)

	if len(withPanic) != len(baseline) {
		t.Fatalf("panicking analyzer changed result count: %d vs %d", len(withPanic), len(baseline))
	}
	for i := range baseline {
		if withPanic[i].Analyzer() != baseline[i].Analyzer() || withPanic[i].Comment() != baseline[i].Comment() {
			t.Fatalf("result %d differs: %q vs %q", i, withPanic[i].Comment(), baseline[i].Comment())
		}
	}
	if len(failures) != 1 || failures[0] != "panicky" {
		t.Fatalf("failure hook calls = %v, want [panicky]", failures)
	}
}

func TestPipelineDropsResultsWithoutCategories(t *testing.T) {
	pipeline := NewPipeline([]Analyzer{emptyCategoryAnalyzer{}})
	if results := pipeline.Analyze(newTestRequest(t, http.MethodGet, "/", "", nil)); len(results) != 0 {
		t.Fatalf("len(results) = %d, want 0", len(results))
	}
}

func TestDefaultPipelineResultCountBounded(t *testing.T) {
	pipeline := NewPipeline(DefaultAnalyzers())

	requests := []*Request{
		newTestRequest(t, http.MethodGet, "/", "", nil),
		newTestRequest(t, http.MethodGet, "/page?id=1'%20UNION%20SELECT%20username,password%20FROM%20users--", "", map[string]string{"User-Agent": "sqlmap/1.7"}),
		newTestRequest(t, http.MethodPost, "/wp-login.php", "log=admin&pwd=password", nil),
		newTestRequest(t, "PROPFIND", "/.git/config?x=%3Cscript%3E", "", map[string]string{"User-Agent": ""}),
	}

	for i, req := range requests {
		results := pipeline.Analyze(req)
		if len(results) > pipeline.Len() {
			t.Fatalf("request %d: %d results exceed %d analyzers", i, len(results), pipeline.Len())
		}
	}
}

func TestDefaultPipelineQuietOnBenignBrowsing(t *testing.T) {
	pipeline := NewPipeline(DefaultAnalyzers())

	for _, target := range []string{"/", "/about-us/", "/blog/hello-world?utm_source=newsletter", "/wp-content/themes/site/style.css?ver=6.4"} {
		if results := pipeline.Analyze(newTestRequest(t, http.MethodGet, target, "", nil)); len(results) != 0 {
			t.Errorf("%s: unexpected detections from %s", target, results[0].Analyzer())
		}
	}
}

func TestDefaultAnalyzerNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, name := range NewPipeline(DefaultAnalyzers()).Names() {
		if seen[name] {
			t.Fatalf("duplicate analyzer name %q", name)
		}
		seen[name] = true
	}
}
