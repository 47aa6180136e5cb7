package issue

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func queryFixture() []*AuditEvent {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	mk := func(id, taskID, issueID, kind string, offset time.Duration) *AuditEvent {
		return &AuditEvent{
			ID:        id,
			TaskID:    taskID,
			IssueID:   issueID,
			Kind:      kind,
			Payload:   json.RawMessage(`{"n":1}`),
			CreatedAt: base.Add(offset),
		}
	}
	return []*AuditEvent{
		mk("ev-1", "task-1", "issue-1", KindPlanCreated, 0),
		mk("ev-2", "task-1", "issue-1", KindToolCall, time.Minute),
		mk("ev-3", "task-1", "issue-2", KindToolCall, 2*time.Minute),
		mk("ev-4", "task-2", "issue-3", KindCompletion, 3*time.Minute),
	}
}

func TestFilterEvents(t *testing.T) {
	events := queryFixture()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{
			name:   "empty filter returns all",
			filter: EventFilter{},
			want:   []string{"ev-1", "ev-2", "ev-3", "ev-4"},
		},
		{
			name:   "by issue",
			filter: EventFilter{IssueID: "issue-1"},
			want:   []string{"ev-1", "ev-2"},
		},
		{
			name:   "by task",
			filter: EventFilter{TaskID: "task-2"},
			want:   []string{"ev-4"},
		},
		{
			name:   "by kind",
			filter: EventFilter{Kind: KindToolCall},
			want:   []string{"ev-2", "ev-3"},
		},
		{
			name:   "since",
			filter: EventFilter{Since: base.Add(90 * time.Second)},
			want:   []string{"ev-3", "ev-4"},
		},
		{
			name:   "until",
			filter: EventFilter{Until: base.Add(time.Minute)},
			want:   []string{"ev-1", "ev-2"},
		},
		{
			name:   "combined",
			filter: EventFilter{TaskID: "task-1", Kind: KindToolCall, Until: base.Add(90 * time.Second)},
			want:   []string{"ev-2"},
		},
		{
			name:   "no matches",
			filter: EventFilter{IssueID: "issue-99"},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterEvents(events, tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d] = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestExportEvents_JSON(t *testing.T) {
	events := queryFixture()
	var buf bytes.Buffer

	if err := ExportEvents(&buf, events, "json"); err != nil {
		t.Fatalf("ExportEvents() error = %v", err)
	}

	var decoded []*AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != len(events) {
		t.Errorf("decoded %d events, want %d", len(decoded), len(events))
	}
	if decoded[0].ID != "ev-1" || decoded[0].Kind != KindPlanCreated {
		t.Errorf("decoded[0] = %+v", decoded[0])
	}
}

func TestExportEvents_Text(t *testing.T) {
	events := queryFixture()
	var buf bytes.Buffer

	if err := ExportEvents(&buf, events, "text"); err != nil {
		t.Fatalf("ExportEvents() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != len(events) {
		t.Fatalf("got %d lines, want %d", len(lines), len(events))
	}
	first := lines[0]
	if !strings.Contains(first, KindPlanCreated) {
		t.Errorf("line missing kind: %q", first)
	}
	if !strings.Contains(first, "issue=issue-1") || !strings.Contains(first, "task=task-1") {
		t.Errorf("line missing context: %q", first)
	}
	if !strings.HasPrefix(first, "[2025-06-01") {
		t.Errorf("line missing timestamp prefix: %q", first)
	}
}

func TestExportEvents_CSV(t *testing.T) {
	events := queryFixture()
	var buf bytes.Buffer

	if err := ExportEvents(&buf, events, "csv"); err != nil {
		t.Fatalf("ExportEvents() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != len(events)+1 {
		t.Fatalf("got %d records, want %d", len(records), len(events)+1)
	}
	if records[0][0] != "created_at" || records[0][1] != "kind" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][1] != KindPlanCreated || records[1][2] != "issue-1" {
		t.Errorf("first record = %v", records[1])
	}
}

func TestExportEvents_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	err := ExportEvents(&buf, queryFixture(), "xml")
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported export format") {
		t.Errorf("error = %v", err)
	}
}
