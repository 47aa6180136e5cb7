package util

import (
	"testing"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "short string unchanged",
			input:    "hello",
			maxLen:   10,
			expected: "hello",
		},
		{
			name:     "exact length unchanged",
			input:    "hello",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "long string truncated",
			input:    "hello world",
			maxLen:   8,
			expected: "hello...",
		},
		{
			name:     "very small maxLen returns ellipsis",
			input:    "hello",
			maxLen:   3,
			expected: "...",
		},
		{
			name:     "maxLen of 0 returns ellipsis",
			input:    "hello",
			maxLen:   0,
			expected: "...",
		},
		{
			name:     "negative maxLen returns ellipsis",
			input:    "hello",
			maxLen:   -5,
			expected: "...",
		},
		{
			name:     "empty string unchanged",
			input:    "",
			maxLen:   10,
			expected: "",
		},
		{
			name:     "maxLen of 4 shows one char plus ellipsis",
			input:    "hello",
			maxLen:   4,
			expected: "h...",
		},
		{
			name:     "unicode characters counted correctly",
			input:    "日本語テスト",
			maxLen:   5,
			expected: "日本...",
		},
		{
			name:     "unicode exact length unchanged",
			input:    "日本語",
			maxLen:   3,
			expected: "...",
		},
		{
			name:     "mixed ascii and unicode",
			input:    "hello日本語world",
			maxLen:   10,
			expected: "hello日本...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateString(tt.input, tt.maxLen)
			if got != tt.expected {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestBalancedJSONBlock(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantBlock string
		wantOK    bool
	}{
		{
			name:      "bare object",
			input:     `{"a": 1}`,
			wantBlock: `{"a": 1}`,
			wantOK:    true,
		},
		{
			name:      "prose around object",
			input:     `before {"a": 1} after`,
			wantBlock: `{"a": 1}`,
			wantOK:    true,
		},
		{
			name:      "nested objects",
			input:     `{"a": {"b": 2}}`,
			wantBlock: `{"a": {"b": 2}}`,
			wantOK:    true,
		},
		{
			name:      "brace inside string literal",
			input:     `{"a": "}"}`,
			wantBlock: `{"a": "}"}`,
			wantOK:    true,
		},
		{
			name:      "escaped quote inside string",
			input:     `{"a": "\"}"}`,
			wantBlock: `{"a": "\"}"}`,
			wantOK:    true,
		},
		{
			name:   "unbalanced",
			input:  `{"a": 1`,
			wantOK: false,
		},
		{
			name:   "no braces",
			input:  "plain text",
			wantOK: false,
		},
		{
			name:   "empty string",
			input:  "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := BalancedJSONBlock(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got := tt.input[start:end]; got != tt.wantBlock {
				t.Errorf("block = %q, want %q", got, tt.wantBlock)
			}
		})
	}
}
