package detection

import (
	"github.com/charmbracelet/log"

	"honeypress/internal/domain"
)

// Analyzer inspects a request and returns at most one finding.
// Implementations must be stateless and must not perform I/O.
type Analyzer interface {
	Name() string
	Analyze(req *Request) *domain.DetectionResult
}

// Pipeline runs a fixed, ordered list of analyzers against every request.
type Pipeline struct {
	analyzers []Analyzer
	onFailure func(analyzer string)
}

type PipelineOption func(*Pipeline)

// WithFailureHook registers a callback invoked when an analyzer panics.
func WithFailureHook(hook func(analyzer string)) PipelineOption {
	return func(p *Pipeline) {
		p.onFailure = hook
	}
}

// NewPipeline builds a pipeline over analyzers in registration order.
func NewPipeline(analyzers []Analyzer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{analyzers: append([]Analyzer(nil), analyzers...)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultAnalyzers returns the built-in analyzers. Appending here is the only
// way to register a new one; order determines comment concatenation.
func DefaultAnalyzers() []Analyzer {
	return []Analyzer{
		SQLInjectionAnalyzer{},
		XSSAnalyzer{},
		PathTraversalAnalyzer{},
		SSRFAnalyzer{},
		HTTPVerbAnalyzer{},
		UserAgentAnalyzer{},
		HeaderAnomalyAnalyzer{},
		BruteForceAnalyzer{},
		ConfigAccessAnalyzer{},
		FormSpamAnalyzer{},
		XMLRPCAnalyzer{},
	}
}

// Analyze invokes every analyzer and collects non-nil results in registration order.
// A panicking analyzer counts as "no detection" and never affects the others.
func (p *Pipeline) Analyze(req *Request) []domain.DetectionResult {
	if req == nil {
		return nil
	}

	var results []domain.DetectionResult
	for _, analyzer := range p.analyzers {
		if res, ok := p.run(analyzer, req); ok {
			results = append(results, res)
		}
	}
	return results
}

func (p *Pipeline) run(analyzer Analyzer, req *Request) (res domain.DetectionResult, ok bool) {
	name := "unknown"
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Debug("analyzer skipped", "analyzer", name, "panic", recovered)
			if p.onFailure != nil {
				p.onFailure(name)
			}
			res, ok = domain.DetectionResult{}, false
		}
	}()

	name = analyzer.Name()
	found := analyzer.Analyze(req)
	if found == nil || len(found.Categories()) == 0 {
		return domain.DetectionResult{}, false
	}
	return *found, true
}

// Len returns the number of registered analyzers.
func (p *Pipeline) Len() int {
	return len(p.analyzers)
}

// Names lists analyzer names in registration order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.analyzers))
	for i, a := range p.analyzers {
		names[i] = a.Name()
	}
	return names
}
