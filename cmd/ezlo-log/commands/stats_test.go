package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ezlo-protocol/ezlo-go/pkg/log"
)

func TestStatsCountsByLayer(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerTransport, Category: log.CategoryControl},
		{Timestamp: ts, Layer: log.LayerTransport, Category: log.CategoryControl},
		{Timestamp: ts, Layer: log.LayerWire, Category: log.CategoryMessage},
		{Timestamp: ts, Layer: log.LayerSession, Category: log.CategoryState},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "TRANSPORT:") {
		t.Error("expected TRANSPORT layer in output")
	}
	if !strings.Contains(output, "WIRE:") {
		t.Error("expected WIRE layer in output")
	}
	if !strings.Contains(output, "SESSION:") {
		t.Error("expected SESSION layer in output")
	}
	if !strings.Contains(output, "Total Events: 4") {
		t.Errorf("expected 4 total events, got:\n%s", output)
	}
}

func TestStatsAggregatesMethods(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	code := -32602
	events := []log.Event{
		{
			Timestamp: ts,
			Direction: log.DirectionOut,
			Layer:     log.LayerWire,
			Category:  log.CategoryMessage,
			Message:   &log.MessageEvent{Type: log.MessageTypeRequest, Method: "hub.info.get"},
		},
		{
			Timestamp: ts.Add(40 * time.Millisecond),
			Direction: log.DirectionIn,
			Layer:     log.LayerWire,
			Category:  log.CategoryMessage,
			Message: &log.MessageEvent{
				Type:      log.MessageTypeReply,
				Method:    "hub.info.get",
				RoundTrip: roundTrip(40 * time.Millisecond),
			},
		},
		{
			Timestamp: ts,
			Direction: log.DirectionOut,
			Layer:     log.LayerWire,
			Category:  log.CategoryMessage,
			Message:   &log.MessageEvent{Type: log.MessageTypeRequest, Method: "hub.item.value.set"},
		},
		{
			Timestamp: ts.Add(time.Second),
			Direction: log.DirectionIn,
			Layer:     log.LayerWire,
			Category:  log.CategoryMessage,
			Message: &log.MessageEvent{
				Type:      log.MessageTypeReply,
				Method:    "hub.item.value.set",
				ErrorCode: &code,
			},
		},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "hub.info.get") {
		t.Error("expected hub.info.get in method stats")
	}
	if !strings.Contains(output, "avg=40ms") {
		t.Errorf("expected average round trip, got:\n%s", output)
	}
	if !strings.Contains(output, "errors=1") {
		t.Errorf("expected hub error count, got:\n%s", output)
	}
}

func TestStatsCountsBroadcasts(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{
			Timestamp: ts,
			Layer:     log.LayerWire,
			Category:  log.CategoryMessage,
			Message:   &log.MessageEvent{Type: log.MessageTypeBroadcast, Subclass: "hub.item.updated"},
		},
		{
			Timestamp: ts,
			Layer:     log.LayerWire,
			Category:  log.CategoryMessage,
			Message:   &log.MessageEvent{Type: log.MessageTypeBroadcast, Subclass: "hub.item.updated"},
		},
		{
			Timestamp: ts,
			Layer:     log.LayerWire,
			Category:  log.CategoryMessage,
			Message:   &log.MessageEvent{Type: log.MessageTypeBroadcast, Subclass: "hub.modes.switched"},
		},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "hub.item.updated") || !strings.Contains(output, "2") {
		t.Errorf("expected broadcast counts, got:\n%s", output)
	}
}

func TestStatsConnectionsAndSerial(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "conn-aaaa-bbbb", Serial: "90000123", Category: log.CategoryMessage},
		{Timestamp: ts.Add(time.Second), ConnectionID: "conn-aaaa-bbbb", Category: log.CategoryMessage},
		{Timestamp: ts, ConnectionID: "conn-cccc-dddd", Category: log.CategoryMessage},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Connections: 2") {
		t.Errorf("expected 2 connections, got:\n%s", output)
	}
	if !strings.Contains(output, "Serial: 90000123") {
		t.Errorf("expected serial detail, got:\n%s", output)
	}
}

func TestStatsErrorCount(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Category: log.CategoryMessage},
		{Timestamp: ts, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "read failed"}},
		{Timestamp: ts, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "dial failed"}},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	if !strings.Contains(buf.String(), "Errors: 2") {
		t.Errorf("expected 2 errors, got:\n%s", buf.String())
	}
}
