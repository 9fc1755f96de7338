package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/ezlo-protocol/ezlo-go/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()

	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open filtered file: %v", err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		e, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, e)
	}
	return events
}

func TestFilterByConnection(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "conn-a", Category: log.CategoryMessage},
		{Timestamp: ts, ConnectionID: "conn-b", Category: log.CategoryMessage},
		{Timestamp: ts, ConnectionID: "conn-a", Category: log.CategoryState},
	}

	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "filtered.ezlog")

	err := RunFilter(path, FilterOptions{Output: out, ConnID: "conn-a"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	filtered := readAll(t, out)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 events, got %d", len(filtered))
	}
	for _, e := range filtered {
		if e.ConnectionID != "conn-a" {
			t.Errorf("unexpected connection id %q", e.ConnectionID)
		}
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base, Category: log.CategoryMessage},
		{Timestamp: base.Add(time.Hour), Category: log.CategoryMessage},
		{Timestamp: base.Add(2 * time.Hour), Category: log.CategoryMessage},
	}

	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "filtered.ezlog")

	err := RunFilter(path, FilterOptions{
		Output:    out,
		TimeStart: base.Add(30 * time.Minute).Format(time.RFC3339),
		TimeEnd:   base.Add(90 * time.Minute).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	filtered := readAll(t, out)
	if len(filtered) != 1 {
		t.Fatalf("expected 1 event, got %d", len(filtered))
	}
}

func TestFilterInvalidTime(t *testing.T) {
	path := createTestLogFile(t, nil)
	out := filepath.Join(t.TempDir(), "filtered.ezlog")

	err := RunFilter(path, FilterOptions{Output: out, TimeStart: "yesterday"})
	if err == nil {
		t.Error("expected error for invalid time")
	}
}

func TestFilterBySerial(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Serial: "90000123", Category: log.CategoryMessage},
		{Timestamp: ts, Serial: "70000444", Category: log.CategoryMessage},
	}

	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "filtered.ezlog")

	if err := RunFilter(path, FilterOptions{Output: out, Serial: "90000123"}); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	filtered := readAll(t, out)
	if len(filtered) != 1 || filtered[0].Serial != "90000123" {
		t.Fatalf("expected one event for serial 90000123, got %d", len(filtered))
	}
}
