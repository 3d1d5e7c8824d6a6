package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"honeypress/internal/config"
	"honeypress/internal/database"
	"honeypress/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm/logger"
)

func TestReadPort(t *testing.T) {
	t.Setenv("HONEYPRESS_PORT_VALID", "12345")
	if got := readPort("HONEYPRESS_PORT_VALID"); got != 12345 {
		t.Fatalf("readPort returned %d, want 12345", got)
	}

	t.Setenv("HONEYPRESS_PORT_INVALID", "not-a-number")
	if got := readPort("HONEYPRESS_PORT_INVALID"); got != 0 {
		t.Fatalf("readPort with invalid value returned %d, want 0", got)
	}

	t.Setenv("HONEYPRESS_PORT_RANGE", "70000")
	if got := readPort("HONEYPRESS_PORT_RANGE"); got != 0 {
		t.Fatalf("readPort with out-of-range value returned %d, want 0", got)
	}
}

func TestParseFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := parseFlags(nil)
		if err != nil {
			t.Fatalf("parseFlags returned error: %v", err)
		}
		if opts.port != defaultPort || opts.opsPort != defaultOpsPort || opts.opsHost != defaultOpsHost {
			t.Fatalf("opts = %+v", opts)
		}
	})

	t.Run("env overrides port flag", func(t *testing.T) {
		t.Setenv("HONEYPRESS_PORT", "8181")
		opts, err := parseFlags([]string{"-port", "8000", "-debug", "-whitelist-add", "10.0.0.0/8"})
		if err != nil {
			t.Fatalf("parseFlags returned error: %v", err)
		}
		if opts.port != 8181 || !opts.debug || opts.whitelistAdd != "10.0.0.0/8" {
			t.Fatalf("opts = %+v", opts)
		}
	})

	t.Run("unknown flag", func(t *testing.T) {
		if _, err := parseFlags([]string{"-nope"}); err == nil {
			t.Fatal("parseFlags accepted an unknown flag")
		}
	})
}

func TestReportingSettings(t *testing.T) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig returned error: %v", err)
	}

	settings := reportingSettings(cfg.Reporting)
	if settings.Timeout != 15*time.Second || settings.ConnectTimeout != 5*time.Second {
		t.Fatalf("timeouts = %s / %s", settings.Timeout, settings.ConnectTimeout)
	}
	if settings.BackoffBase != 5*time.Second || settings.BackoffMax != time.Hour {
		t.Fatalf("backoff = %s / %s", settings.BackoffBase, settings.BackoffMax)
	}
	if settings.ReportsPerMinute != 30 || settings.APIKeyHeader != "Key" {
		t.Fatalf("settings = %+v", settings)
	}
}

func setupAppDB(t *testing.T) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name)

	db, err := database.SetupDB(
		database.WithDialector(sqlite.Open(dsn)),
		database.WithLogger(logger.Default.LogMode(logger.Silent)),
	)
	if err != nil {
		t.Fatalf("setup test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		database.DB = nil
	})
}

func testComponents(t *testing.T) *components {
	t.Helper()

	cfg, err := config.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig returned error: %v", err)
	}
	cfg.Reporting.APIKey = ""
	cfg.Reporting.DiagnosticLog = t.TempDir() + "/report_failures.log"
	c := buildComponents(cfg)
	t.Cleanup(c.close)
	return c
}

func TestComponentsFollowConfigChanges(t *testing.T) {
	setupAppDB(t)
	original := config.GetConfig()
	if err := config.ReadSettings(filepath.Join(t.TempDir(), "settings.json")); err != nil {
		t.Fatalf("ReadSettings returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := config.SetConfig(original); err != nil {
			t.Logf("restore config: %v", err)
		}
	})

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Key") == "live-key" {
			hits.Add(1)
		}
	}))
	t.Cleanup(srv.Close)

	c := testComponents(t)
	ctx := context.Background()
	event := domain.Event{
		IP:         "203.0.113.5",
		Categories: domain.NewCategoryList(domain.CategorySQLInjection),
		Timestamp:  time.Now().UTC(),
	}
	if err := database.InsertEvent(ctx, &event); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	if res := c.queue.Process(ctx, 10); res.Sent != 0 {
		t.Fatalf("result before key = %+v, want nothing sent", res)
	}

	live := config.GetConfig()
	live.Reporting.APIKey = "live-key"
	live.Reporting.APIURL = srv.URL
	live.Detection.LogRatePerMinute = 2
	live.Network.TrustedProxies = []string{"10.0.0.0/8"}
	if err := config.SetConfig(live); err != nil {
		t.Fatalf("SetConfig returned error: %v", err)
	}

	if res := c.queue.Process(ctx, 10); res.Sent != 1 || hits.Load() != 1 {
		t.Fatalf("result after key = %+v, remote hits = %d; want one report", res, hits.Load())
	}

	header := http.Header{}
	header.Set("X-Forwarded-For", "198.51.100.9")
	if got := c.resolver.ResolveFrom("10.1.1.1:443", header); got != "198.51.100.9" {
		t.Fatalf("resolver ignored live trusted proxies: %q", got)
	}
}

func TestRunOneShotWhitelist(t *testing.T) {
	setupAppDB(t)
	c := testComponents(t)
	ctx := context.Background()

	handled, err := runOneShot(ctx, c, options{whitelistAdd: "192.0.2.10", description: "monitoring"})
	if !handled || err != nil {
		t.Fatalf("whitelist-add = %v, %v", handled, err)
	}
	if !c.whitelist.IsWhitelisted("192.0.2.10") {
		t.Fatal("address not whitelisted after -whitelist-add")
	}

	handled, err = runOneShot(ctx, c, options{whitelistRemove: "192.0.2.10"})
	if !handled || err != nil {
		t.Fatalf("whitelist-remove = %v, %v", handled, err)
	}
	if c.whitelist.IsWhitelisted("192.0.2.10") {
		t.Fatal("address still whitelisted after -whitelist-remove")
	}

	if _, err := runOneShot(ctx, c, options{whitelistRemove: "192.0.2.10"}); err == nil {
		t.Fatal("removing a missing entry succeeded")
	}
}

func TestRunOneShotCleanupAndQueue(t *testing.T) {
	setupAppDB(t)
	c := testComponents(t)
	ctx := context.Background()

	old := domain.Event{
		IP:         "203.0.113.5",
		Categories: domain.NewCategoryList(domain.CategoryXSS),
		Timestamp:  time.Now().UTC().AddDate(0, 0, -90),
	}
	if err := database.InsertEvent(ctx, &old); err != nil {
		t.Fatalf("insert event: %v", err)
	}

	handled, err := runOneShot(ctx, c, options{processQueue: true})
	if !handled || err != nil {
		t.Fatalf("process-queue = %v, %v", handled, err)
	}
	if pending, _ := database.CountUnsentEvents(ctx); pending != 1 {
		t.Fatalf("pending = %d, want 1 while reporting is unconfigured", pending)
	}

	handled, err = runOneShot(ctx, c, options{cleanup: true})
	if !handled || err != nil {
		t.Fatalf("cleanup = %v, %v", handled, err)
	}
	if total, _ := database.CountEvents(ctx, time.Time{}); total != 0 {
		t.Fatalf("events after cleanup = %d, want 0", total)
	}

	if handled, _ := runOneShot(ctx, c, options{}); handled {
		t.Fatal("runOneShot handled an empty option set")
	}
}
