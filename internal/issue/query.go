package issue

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// EventFilter selects audit events for inspection and export. Criteria
// combine with AND; zero values mean "no filtering on this field".
type EventFilter struct {
	// IssueID restricts to events from one issue.
	IssueID string

	// TaskID restricts to events from one task.
	TaskID string

	// Kind restricts to one audit event kind, e.g. "tool_call".
	Kind string

	// Since restricts to events at or after this time.
	Since time.Time

	// Until restricts to events at or before this time.
	Until time.Time
}

// FilterEvents returns the events matching all set filter criteria, in
// their original order.
func FilterEvents(events []*AuditEvent, filter EventFilter) []*AuditEvent {
	if isEmptyFilter(filter) {
		return events
	}

	var filtered []*AuditEvent
	for _, ev := range events {
		if matchesFilter(ev, filter) {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

func isEmptyFilter(f EventFilter) bool {
	return f.IssueID == "" &&
		f.TaskID == "" &&
		f.Kind == "" &&
		f.Since.IsZero() &&
		f.Until.IsZero()
}

func matchesFilter(ev *AuditEvent, f EventFilter) bool {
	if f.IssueID != "" && ev.IssueID != f.IssueID {
		return false
	}
	if f.TaskID != "" && ev.TaskID != f.TaskID {
		return false
	}
	if f.Kind != "" && ev.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && ev.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && ev.CreatedAt.After(f.Until) {
		return false
	}
	return true
}

// ExportEvents writes audit events to w in the given format.
// Supported formats: "json", "text", "csv".
func ExportEvents(w io.Writer, events []*AuditEvent, format string) error {
	switch strings.ToLower(format) {
	case "json":
		return exportJSON(w, events)
	case "text":
		return exportText(w, events)
	case "csv":
		return exportCSV(w, events)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: json, text, csv)", format)
	}
}

// exportJSON writes events as an indented JSON array.
func exportJSON(w io.Writer, events []*AuditEvent) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(events)
}

// exportText writes events one per line:
// [TIMESTAMP] KIND (issue=..., task=...) {payload}
func exportText(w io.Writer, events []*AuditEvent) error {
	for _, ev := range events {
		var parts []string

		ts := ev.CreatedAt.Format("2006-01-02 15:04:05.000")
		parts = append(parts, fmt.Sprintf("[%s]", ts))
		parts = append(parts, ev.Kind)

		var context []string
		if ev.IssueID != "" {
			context = append(context, fmt.Sprintf("issue=%s", ev.IssueID))
		}
		if ev.TaskID != "" {
			context = append(context, fmt.Sprintf("task=%s", ev.TaskID))
		}
		if len(context) > 0 {
			parts = append(parts, fmt.Sprintf("(%s)", strings.Join(context, ", ")))
		}

		if len(ev.Payload) > 0 {
			parts = append(parts, string(ev.Payload))
		}

		line := strings.Join(parts, " ") + "\n"
		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("failed to write text entry: %w", err)
		}
	}
	return nil
}

// exportCSV writes events as CSV with a header row.
func exportCSV(w io.Writer, events []*AuditEvent) error {
	writer := csv.NewWriter(w)

	headers := []string{"created_at", "kind", "issue_id", "task_id", "id", "payload"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, ev := range events {
		record := []string{
			ev.CreatedAt.Format(time.RFC3339Nano),
			ev.Kind,
			ev.IssueID,
			ev.TaskID,
			ev.ID,
			string(ev.Payload),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
