package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ezlo-protocol/ezlo-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	Methods           map[string]*MethodStats
	Broadcasts        map[string]int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Serial    string
}

// MethodStats aggregates request/reply timing for one hub method.
type MethodStats struct {
	Calls          int
	Replies        int
	HubErrors      int
	TotalRoundTrip time.Duration
}

// AvgRoundTrip returns the mean reply latency, or zero without replies.
func (m *MethodStats) AvgRoundTrip() time.Duration {
	if m.Replies == 0 {
		return 0
	}
	return m.TotalRoundTrip / time.Duration(m.Replies)
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
		Methods:           make(map[string]*MethodStats),
		Broadcasts:        make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		conn, ok := stats.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if event.Serial != "" && conn.Serial == "" {
			conn.Serial = event.Serial
		}

		if msg := event.Message; msg != nil {
			switch msg.Type {
			case log.MessageTypeRequest:
				methodStats(stats, msg.Method).Calls++
			case log.MessageTypeReply:
				ms := methodStats(stats, msg.Method)
				ms.Replies++
				if msg.ErrorCode != nil {
					ms.HubErrors++
				}
				if msg.RoundTrip != nil {
					ms.TotalRoundTrip += *msg.RoundTrip
				}
			case log.MessageTypeBroadcast:
				stats.Broadcasts[msg.Subclass]++
			}
		}

		if event.Error != nil {
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

func methodStats(stats *Stats, method string) *MethodStats {
	ms, ok := stats.Methods[method]
	if !ok {
		ms = &MethodStats{}
		stats.Methods[method] = ms
	}
	return ms
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Ezlo Wire Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerSession} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Methods) > 0 {
		fmt.Fprintln(w, "Hub Methods:")
		methods := make([]string, 0, len(stats.Methods))
		for m := range stats.Methods {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			ms := stats.Methods[m]
			fmt.Fprintf(w, "  %-28s calls=%d replies=%d", m, ms.Calls, ms.Replies)
			if ms.HubErrors > 0 {
				fmt.Fprintf(w, " errors=%d", ms.HubErrors)
			}
			if avg := ms.AvgRoundTrip(); avg > 0 {
				fmt.Fprintf(w, " avg=%s", avg.Round(time.Microsecond))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	if len(stats.Broadcasts) > 0 {
		fmt.Fprintln(w, "Broadcasts:")
		subclasses := make([]string, 0, len(stats.Broadcasts))
		for s := range stats.Broadcasts {
			subclasses = append(subclasses, s)
		}
		sort.Strings(subclasses)
		for _, s := range subclasses {
			fmt.Fprintf(w, "  %-28s %d\n", s, stats.Broadcasts[s])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w, "")
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			shortID := c.id
			if len(shortID) > 8 {
				shortID = shortID[:8]
			}
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortID, c.stats.Events, duration)
			if c.stats.Serial != "" {
				fmt.Fprintf(w, "           Serial: %s\n", c.stats.Serial)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
