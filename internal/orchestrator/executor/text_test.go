package executor

import (
	"strings"
	"testing"
)

func TestCompletionSummary(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{
			name:   "marker on own line",
			text:   "Created the file.\nTASK COMPLETE",
			want:   "Created the file.",
			wantOK: true,
		},
		{
			name:   "lowercase marker",
			text:   "task complete",
			want:   "",
			wantOK: true,
		},
		{
			name:   "mixed case with trailing text",
			text:   "Task Complete. Wrote the file.",
			want:   ". Wrote the file.",
			wantOK: true,
		},
		{
			name:   "underscore variant",
			text:   "TASK_COMPLETE: wrote hello.txt",
			want:   ": wrote hello.txt",
			wantOK: true,
		},
		{
			name:   "all done mid sentence",
			text:   "We are ALL DONE here.",
			want:   "We are  here.",
			wantOK: true,
		},
		{
			name:   "fenced marker ignored",
			text:   "```\nTASK COMPLETE\n```\nStill checking output.",
			want:   "",
			wantOK: false,
		},
		{
			name:   "marker after fence closes",
			text:   "```\necho done\n```\nTASK COMPLETE",
			want:   "```\necho done\n```",
			wantOK: true,
		},
		{
			name:   "only first marker removed",
			text:   "TASK COMPLETE\nTASK COMPLETE",
			want:   "TASK COMPLETE",
			wantOK: true,
		},
		{
			name:   "no marker",
			text:   "Working on it.",
			want:   "",
			wantOK: false,
		},
		{
			name:   "empty text",
			text:   "",
			want:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := completionSummary(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("completionSummary(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("completionSummary(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestStripToolLeakage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "removes leaked call",
			text: `I'll write the file now. {"name": "write_file", "arguments": {"path": "hello.txt"}} Doing it.`,
			want: "I'll write the file now.  Doing it.",
		},
		{
			name: "tool and parameters aliases",
			text: `{"tool": "list_dir", "parameters": {}}`,
			want: "",
		},
		{
			name: "keeps plain json",
			text: `The config is {"debug": true} today.`,
			want: `The config is {"debug": true} today.`,
		},
		{
			name: "keeps call shape without arguments",
			text: `{"name": "echo"}`,
			want: `{"name": "echo"}`,
		},
		{
			name: "removes only the call block",
			text: `Checking. {"name": "echo", "arguments": {"x": 1}} Result was {"ok": true} as expected.`,
			want: `Checking.  Result was {"ok": true} as expected.`,
		},
		{
			name: "plain prose untouched",
			text: "Just prose.",
			want: "Just prose.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripToolLeakage(tt.text); got != tt.want {
				t.Errorf("stripToolLeakage(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestFallbackSummary(t *testing.T) {
	t.Run("empty text gets a stock summary", func(t *testing.T) {
		want := "execution ended without an explicit summary"
		if got := fallbackSummary("  \n "); got != want {
			t.Errorf("fallbackSummary(blank) = %q, want %q", got, want)
		}
	})

	t.Run("short text is kept trimmed", func(t *testing.T) {
		if got := fallbackSummary("  finished the refactor  "); got != "finished the refactor" {
			t.Errorf("fallbackSummary() = %q, want trimmed text", got)
		}
	})

	t.Run("long text is truncated", func(t *testing.T) {
		got := fallbackSummary(strings.Repeat("x", 600))
		if n := len([]rune(got)); n != 500 {
			t.Errorf("len = %d runes, want 500", n)
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("fallbackSummary() = %q, want ... suffix", got)
		}
	})
}
