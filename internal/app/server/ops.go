package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"honeypress/internal/config"
	"honeypress/internal/domain"
	"honeypress/internal/eventlog"
	"honeypress/internal/jobs/queue"
	"honeypress/internal/metrics"
	"honeypress/internal/network"
)

const (
	maxOpsBody  = 16 << 10
	redactedKey = "********"
)

type statsSource interface {
	Stats(ctx context.Context) (eventlog.Stats, error)
}

type queueRunner interface {
	Process(ctx context.Context, batchSize int) queue.Result
	QueueSize(ctx context.Context) (int64, error)
}

type whitelistStore interface {
	Add(ctx context.Context, ipOrCIDR, description string) (domain.WhitelistEntry, error)
	Remove(ctx context.Context, ipOrCIDR string) (bool, error)
	List(ctx context.Context) ([]domain.WhitelistEntry, error)
}

// Ops serves the operator endpoints. It is meant for a loopback listener.
type Ops struct {
	Stats     statsSource
	Queue     queueRunner
	Whitelist whitelistStore
	BatchSize func() int

	GetSettings func() config.Config
	SetSettings func(config.Config) error
}

type whitelistRequest struct {
	IPOrCIDR    string `json:"ip_or_cidr"`
	Description string `json:"description"`
}

func (o *Ops) Routes() http.Handler {
	router := http.NewServeMux()
	router.Handle("GET /metrics", metrics.Handler())
	router.HandleFunc("GET /stats", o.getStats)
	router.HandleFunc("GET /queue", o.getQueue)
	router.HandleFunc("POST /queue/process", o.processQueue)
	router.HandleFunc("GET /whitelist", o.listWhitelist)
	router.HandleFunc("POST /whitelist", o.addWhitelist)
	router.HandleFunc("DELETE /whitelist", o.removeWhitelist)
	if o.GetSettings != nil && o.SetSettings != nil {
		router.HandleFunc("GET /settings", o.getSettings)
		router.HandleFunc("POST /settings", o.saveSettings)
	}
	return router
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Debug("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (o *Ops) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := o.Stats.Stats(r.Context())
	if err != nil {
		log.Error("Failed to collect stats", "error", err)
		writeError(w, "could not collect stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (o *Ops) getQueue(w http.ResponseWriter, r *http.Request) {
	size, err := o.Queue.QueueSize(r.Context())
	if err != nil {
		log.Error("Failed to count queue", "error", err)
		writeError(w, "could not count queue", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"pending": size})
}

func (o *Ops) processQueue(w http.ResponseWriter, r *http.Request) {
	batch := 0
	if o.BatchSize != nil {
		batch = o.BatchSize()
	}
	writeJSON(w, http.StatusOK, o.Queue.Process(r.Context(), batch))
}

func (o *Ops) listWhitelist(w http.ResponseWriter, r *http.Request) {
	entries, err := o.Whitelist.List(r.Context())
	if err != nil {
		log.Error("Failed to list whitelist", "error", err)
		writeError(w, "could not list whitelist", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (o *Ops) addWhitelist(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeWhitelistRequest(w, r)
	if !ok {
		return
	}

	entry, err := o.Whitelist.Add(r.Context(), req.IPOrCIDR, req.Description)
	if err != nil {
		writeWhitelistError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (o *Ops) removeWhitelist(w http.ResponseWriter, r *http.Request) {
	var req whitelistRequest
	if entry := strings.TrimSpace(r.URL.Query().Get("entry")); entry != "" {
		req.IPOrCIDR = entry
	} else {
		var ok bool
		if req, ok = decodeWhitelistRequest(w, r); !ok {
			return
		}
	}

	removed, err := o.Whitelist.Remove(r.Context(), req.IPOrCIDR)
	if err != nil {
		writeWhitelistError(w, err)
		return
	}
	if !removed {
		writeError(w, "no active whitelist entry", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeWhitelistRequest(w http.ResponseWriter, r *http.Request) (whitelistRequest, bool) {
	var req whitelistRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxOpsBody)).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	if strings.TrimSpace(req.IPOrCIDR) == "" {
		writeError(w, "ip_or_cidr is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func writeWhitelistError(w http.ResponseWriter, err error) {
	if errors.Is(err, network.ErrInvalidAddress) || errors.Is(err, network.ErrInvalidPrefix) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Error("Whitelist update failed", "error", err)
	writeError(w, "could not update whitelist", http.StatusInternalServerError)
}

func (o *Ops) getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, redact(o.GetSettings()))
}

// saveSettings layers the posted JSON over the current settings, so a partial
// document changes only the keys it names.
func (o *Ops) saveSettings(w http.ResponseWriter, r *http.Request) {
	current := o.GetSettings()
	next := current
	next.Network.TrustedProxies = append([]string(nil), current.Network.TrustedProxies...)
	if err := json.NewDecoder(io.LimitReader(r.Body, maxOpsBody)).Decode(&next); err != nil {
		writeError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if next.Reporting.APIKey == redactedKey {
		next.Reporting.APIKey = current.Reporting.APIKey
	}
	if err := next.Validate(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := o.SetSettings(next); err != nil {
		log.Error("Failed to save settings", "error", err)
		writeError(w, "could not save settings", http.StatusInternalServerError)
		return
	}
	log.Info("Settings updated from ops endpoint")
	writeJSON(w, http.StatusOK, redact(next))
}

func redact(cfg config.Config) config.Config {
	if cfg.Reporting.APIKey != "" {
		cfg.Reporting.APIKey = redactedKey
	}
	return cfg
}
