package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"honeypress/internal/domain"
)

func TestCountEventsByIPSince(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	createEvent(t, db, "203.0.113.7", now.Add(-2*time.Minute), domain.SendStateUnsent, domain.CategoryHacking)
	createEvent(t, db, "203.0.113.7", now.Add(-30*time.Second), domain.SendStateUnsent, domain.CategoryHacking)
	createEvent(t, db, "203.0.113.7", now.Add(-10*time.Second), domain.SendStateSent, domain.CategoryHacking)
	createEvent(t, db, "198.51.100.2", now.Add(-10*time.Second), domain.SendStateUnsent, domain.CategoryHacking)

	count, err := CountEventsByIPSince(ctx, "203.0.113.7", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountEventsByIPSince returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestListUnsentEventsOrdersOldestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	third := createEvent(t, db, "192.0.2.3", base.Add(2*time.Second), domain.SendStateUnsent, domain.CategoryXSS)
	first := createEvent(t, db, "192.0.2.1", base, domain.SendStateUnsent, domain.CategoryXSS)
	createEvent(t, db, "192.0.2.9", base.Add(-time.Hour), domain.SendStateSent, domain.CategoryXSS)
	second := createEvent(t, db, "192.0.2.2", base, domain.SendStateUnsent, domain.CategoryXSS)

	events, err := ListUnsentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnsentEvents returned error: %v", err)
	}
	want := []uint64{first.ID, second.ID, third.ID}
	if len(events) != len(want) {
		t.Fatalf("len(events) = %d, want %d", len(events), len(want))
	}
	for i, id := range want {
		if events[i].ID != id {
			t.Fatalf("events[%d].ID = %d, want %d", i, events[i].ID, id)
		}
	}

	limited, err := ListUnsentEvents(ctx, 2)
	if err != nil {
		t.Fatalf("ListUnsentEvents(2) returned error: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("len(limited) = %d, want 2", len(limited))
	}
}

func TestSendStateTransitionsAreOneWay(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	event := createEvent(t, db, "192.0.2.1", time.Now(), domain.SendStateUnsent, domain.CategoryHacking)

	ok, err := MarkEventSent(ctx, event.ID)
	if err != nil || !ok {
		t.Fatalf("MarkEventSent = %v, %v; want true, nil", ok, err)
	}

	ok, err = MarkEventExempt(ctx, event.ID)
	if err != nil {
		t.Fatalf("MarkEventExempt returned error: %v", err)
	}
	if ok {
		t.Fatal("MarkEventExempt changed an already sent event")
	}

	var stored domain.Event
	if err := db.First(&stored, event.ID).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if stored.SendState != domain.SendStateSent {
		t.Fatalf("SendState = %s, want sent", stored.SendState)
	}

	size, err := CountUnsentEvents(ctx)
	if err != nil || size != 0 {
		t.Fatalf("CountUnsentEvents = %d, %v; want 0", size, err)
	}
}

func TestDeleteEventsBefore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	createEvent(t, db, "192.0.2.1", now.AddDate(0, 0, -40), domain.SendStateSent, domain.CategoryHacking)
	createEvent(t, db, "192.0.2.1", now.AddDate(0, 0, -31), domain.SendStateUnsent, domain.CategoryHacking)
	createEvent(t, db, "192.0.2.1", now.AddDate(0, 0, -1), domain.SendStateUnsent, domain.CategoryHacking)

	deleted, err := DeleteEventsBefore(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DeleteEventsBefore returned error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}

	remaining, err := CountEvents(ctx, time.Time{})
	if err != nil || remaining != 1 {
		t.Fatalf("CountEvents = %d, %v; want 1", remaining, err)
	}
}

func TestEventRankings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		createEvent(t, db, "203.0.113.7", now, domain.SendStateUnsent, domain.CategorySQLInjection, domain.CategoryCodeInjection)
	}
	createEvent(t, db, "198.51.100.2", now, domain.SendStateUnsent, domain.CategoryXSS)
	createEvent(t, db, "198.51.100.2", now, domain.SendStateUnsent, domain.CategoryCodeInjection, domain.CategorySQLInjection)

	ips, err := TopEventIPs(ctx, 10)
	if err != nil {
		t.Fatalf("TopEventIPs returned error: %v", err)
	}
	if len(ips) != 2 || ips[0].IP != "203.0.113.7" || ips[0].Count != 3 {
		t.Fatalf("TopEventIPs = %+v", ips)
	}

	combos, err := TopCategoryCombos(ctx, 10)
	if err != nil {
		t.Fatalf("TopCategoryCombos returned error: %v", err)
	}
	if len(combos) != 2 || combos[0].Categories.String() != "2,4" || combos[0].Count != 4 {
		t.Fatalf("TopCategoryCombos = %+v", combos)
	}

	unique, err := CountDistinctEventIPs(ctx)
	if err != nil || unique != 2 {
		t.Fatalf("CountDistinctEventIPs = %d, %v; want 2", unique, err)
	}
}

func TestHandlersRequireDatabase(t *testing.T) {
	DB = nil
	if _, err := CountUnsentEvents(context.Background()); !errors.Is(err, ErrNotInitialised) {
		t.Fatalf("err = %v, want ErrNotInitialised", err)
	}
}
