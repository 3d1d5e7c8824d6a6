package reporting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"honeypress/internal/domain"
	"honeypress/internal/metrics"

	"github.com/charmbracelet/log"
)

const (
	DefaultAPIKeyHeader     = "Key"
	DefaultReportsPerMinute = 30
	DefaultConnectTimeout   = 5 * time.Second
	DefaultTimeout          = 15 * time.Second
	DefaultBackoffBase      = 5 * time.Second
	DefaultBackoffMax       = time.Hour

	budgetWindow     = time.Minute
	maxCommentLength = 1024
	maxResponseBytes = 64 << 10
	excerptLength    = 500
)

type Settings struct {
	APIURL           string
	APIKey           string
	APIKeyHeader     string
	ReportsPerMinute int
	ConnectTimeout   time.Duration
	Timeout          time.Duration
	BackoffBase      time.Duration
	BackoffMax       time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.APIKeyHeader == "" {
		s.APIKeyHeader = DefaultAPIKeyHeader
	}
	if s.ReportsPerMinute <= 0 {
		s.ReportsPerMinute = DefaultReportsPerMinute
	}
	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = DefaultConnectTimeout
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.BackoffBase <= 0 {
		s.BackoffBase = DefaultBackoffBase
	}
	if s.BackoffMax < s.BackoffBase {
		s.BackoffMax = DefaultBackoffMax
		if s.BackoffMax < s.BackoffBase {
			s.BackoffMax = s.BackoffBase
		}
	}
	return s
}

// Outcome describes one call to Report.
type Outcome struct {
	Success    bool
	StatusCode int
	Response   string
	Err        error
	Duration   time.Duration
}

// Refused reports whether the client declined locally without a network call.
func (o Outcome) Refused() bool {
	return IsLocalRefusal(o.Err)
}

// Client delivers abuse reports under a rolling per-minute budget and an
// exponential backoff that grows on every consecutive HTTP 429.
type Client struct {
	diag *DiagnosticLog
	now  func() time.Time

	mu           sync.Mutex
	settings     Settings
	http         *http.Client
	customHTTP   bool
	sends        []time.Time
	backoffDelay time.Duration
	resumeAt     time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
			c.customHTTP = true
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func WithDiagnosticLog(d *DiagnosticLog) Option {
	return func(c *Client) {
		c.diag = d
	}
}

func NewClient(settings Settings, opts ...Option) *Client {
	settings = settings.withDefaults()

	c := &Client{
		settings: settings,
		now:      time.Now,
	}
	c.http = newHTTPClient(settings.ConnectTimeout, settings.Timeout)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(connectTimeout, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Reconfigure replaces the settings used by later reports. Backoff and the
// send history carry over.
func (c *Client) Reconfigure(settings Settings) {
	settings = settings.withDefaults()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.customHTTP && (settings.ConnectTimeout != c.settings.ConnectTimeout || settings.Timeout != c.settings.Timeout) {
		c.http = newHTTPClient(settings.ConnectTimeout, settings.Timeout)
	}
	c.settings = settings
}

func (c *Client) current() (Settings, *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings, c.http
}

// Configured reports whether an API URL and key are set.
func (c *Client) Configured() bool {
	settings, _ := c.current()
	return settings.configured()
}

func (s Settings) configured() bool {
	return strings.TrimSpace(s.APIURL) != "" && strings.TrimSpace(s.APIKey) != ""
}

// Backoff returns the current delay and the time sending may resume.
func (c *Client) Backoff() (time.Duration, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backoffDelay, c.resumeAt
}

// Report sends one report for ip. Local refusals (not configured, budget,
// backoff) return without contacting the API.
func (c *Client) Report(ctx context.Context, ip string, categories domain.CategoryList, comment string) Outcome {
	settings, hc := c.current()
	if !settings.configured() {
		return Outcome{Err: ErrNotConfigured}
	}
	if err := c.reserve(); err != nil {
		metrics.RecordReport(metrics.ReportRefused, 0)
		return Outcome{Err: err}
	}

	start := c.now()
	outcome := send(ctx, hc, settings, ip, categories, comment)
	outcome.Duration = c.now().Sub(start)

	c.settle(outcome)

	switch {
	case outcome.Success:
		metrics.RecordReport(metrics.ReportSent, outcome.Duration.Seconds())
	case outcome.StatusCode == http.StatusTooManyRequests:
		metrics.RecordReport(metrics.ReportThrottled, outcome.Duration.Seconds())
	default:
		metrics.RecordReport(metrics.ReportFailed, outcome.Duration.Seconds())
	}

	if !outcome.Success {
		log.Warn("Report failed", "ip", ip, "status", outcome.StatusCode, "error", outcome.Err)
		if c.diag != nil {
			if err := c.diag.Append(start, ip, outcome.StatusCode, errorText(outcome.Err), outcome.Response); err != nil {
				log.Error("Write report diagnostic log", "error", err)
			}
		}
	}
	return outcome
}

// reserve checks backoff and budget and, when both allow it, takes a send slot.
func (c *Client) reserve() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Before(c.resumeAt) {
		return fmt.Errorf("%w until %s", ErrBackoffActive, c.resumeAt.UTC().Format(time.RFC3339))
	}

	cutoff := now.Add(-budgetWindow)
	kept := c.sends[:0]
	for _, ts := range c.sends {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	c.sends = kept

	if len(c.sends) >= c.settings.ReportsPerMinute {
		return ErrSendBudgetExhausted
	}
	c.sends = append(c.sends, now)
	return nil
}

// settle updates backoff from the attempt: 429 grows it, any other HTTP answer clears it.
func (c *Client) settle(outcome Outcome) {
	if outcome.StatusCode == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if outcome.StatusCode == http.StatusTooManyRequests {
		c.backoffDelay = NextBackoff(c.backoffDelay, c.settings.BackoffBase, c.settings.BackoffMax)
		c.resumeAt = c.now().Add(c.backoffDelay)
		log.Warn("Reporting API throttled, backing off", "delay", c.backoffDelay, "resume_at", c.resumeAt)
	} else {
		c.backoffDelay = 0
		c.resumeAt = time.Time{}
	}
	metrics.SetBackoff(c.backoffDelay.Seconds())
}

// NextBackoff returns base when current is zero, otherwise twice current, never above ceiling.
func NextBackoff(current, base, ceiling time.Duration) time.Duration {
	next := base
	if current > 0 {
		next = current * 2
	}
	if next > ceiling {
		next = ceiling
	}
	return next
}

func send(ctx context.Context, hc *http.Client, settings Settings, ip string, categories domain.CategoryList, comment string) Outcome {
	form := url.Values{}
	form.Set("ip", ip)
	form.Set("categories", categories.String())
	form.Set("comment", truncate(comment, maxCommentLength))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Outcome{Err: fmt.Errorf("reporting: build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(settings.APIKeyHeader, settings.APIKey)

	resp, err := hc.Do(req)
	if err != nil {
		return Outcome{Err: fmt.Errorf("reporting: send: %w", err)}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	body := string(raw)
	outcome := Outcome{StatusCode: resp.StatusCode, Response: truncate(body, excerptLength)}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		outcome.Success = true
	case resp.StatusCode == http.StatusTooManyRequests:
		outcome.Err = errors.Join(ErrThrottled, &RemoteError{StatusCode: resp.StatusCode, Body: outcome.Response})
	default:
		outcome.Err = &RemoteError{StatusCode: resp.StatusCode, Body: outcome.Response}
	}
	if readErr != nil && !outcome.Success {
		outcome.Err = errors.Join(outcome.Err, fmt.Errorf("reporting: read response: %w", readErr))
	}
	return outcome
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
