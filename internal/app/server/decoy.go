package server

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"

	"honeypress/internal/detection"
	"honeypress/internal/domain"
	"honeypress/internal/metrics"
	"honeypress/internal/network"
)

type whitelistChecker interface {
	IsWhitelisted(ip string) bool
}

type eventLogger interface {
	Log(ctx context.Context, ip string, req *detection.Request, results []domain.DetectionResult) (*domain.Event, error)
}

type queueTrigger interface {
	Trigger(batchSize int)
}

// DecoyHandler answers every request with a deceptive page after running it
// through the detection pipeline. Detection never changes the response.
type DecoyHandler struct {
	Resolver  *network.Resolver
	Whitelist whitelistChecker
	Pipeline  *detection.Pipeline
	Events    eventLogger
	Renderer  Renderer
	Queue     queueTrigger
	BodyLimit func() int64
	BatchSize func() int
}

func (h *DecoyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := h.Resolver.Resolve(r)

	if h.Whitelist != nil && h.Whitelist.IsWhitelisted(ip) {
		metrics.RecordRequest(metrics.OutcomeWhitelisted)
		h.Renderer.Render(w, r)
		return
	}
	if detection.IsBenignCrawler(r.UserAgent()) {
		metrics.RecordRequest(metrics.OutcomeCrawler)
		h.Renderer.Render(w, r)
		return
	}

	req := detection.NewRequest(r, h.bodyLimit())
	results := h.Pipeline.Analyze(req)
	metrics.RecordRequest(metrics.OutcomeAnalyzed)
	for _, res := range results {
		metrics.RecordDetection(res.Analyzer())
	}

	var event *domain.Event
	if len(results) > 0 {
		var err error
		event, err = h.Events.Log(r.Context(), ip, req, results)
		if err != nil {
			log.Error("Failed to log detection event", "ip", ip, "error", err)
		}
	}

	h.Renderer.Render(w, r)

	if event != nil && h.Queue != nil {
		log.Debug("Detection event stored", "id", event.ID, "ip", ip, "categories", event.Categories.String())
		h.Queue.Trigger(h.batchSize())
	}
}

func (h *DecoyHandler) bodyLimit() int64 {
	if h.BodyLimit == nil {
		return 0
	}
	return h.BodyLimit()
}

func (h *DecoyHandler) batchSize() int {
	if h.BatchSize == nil {
		return 0
	}
	return h.BatchSize()
}
