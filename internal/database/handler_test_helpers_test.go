package database

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"honeypress/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name)

	db, err := SetupDB(
		WithDialector(sqlite.Open(dsn)),
		WithLogger(silentLogger()),
	)
	if err != nil {
		t.Fatalf("setup test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		DB = nil
	})

	return db
}

func createEvent(t *testing.T, db *gorm.DB, ip string, ts time.Time, state domain.SendState, categories ...domain.Category) domain.Event {
	t.Helper()

	event := domain.Event{
		IP:            ip,
		Categories:    domain.NewCategoryList(categories...),
		Comment:       "[test] seeded",
		RequestURI:    "/",
		RequestMethod: "GET",
		Timestamp:     ts.UTC(),
		SendState:     state,
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}
