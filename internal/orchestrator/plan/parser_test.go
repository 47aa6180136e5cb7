package plan

import (
	"strings"
	"testing"
)

// The same logical plan should parse identically no matter how the model
// wrapped it.
func TestParseResponse_StrategyEquivalence(t *testing.T) {
	want := []string{
		"Create the project directory",
		"Write the main source file",
		"Run the formatter over it",
	}
	jsonBody := `{"steps": ["Create the project directory", "Write the main source file", "Run the formatter over it"]}`

	cases := []struct {
		name string
		raw  string
	}{
		{"strict json", jsonBody},
		{"fenced json", "```json\n" + jsonBody + "\n```"},
		{"json in prose", "Here is the plan you asked for.\n\n" + jsonBody + "\n\nGood luck!"},
		{"step lines", "STEP 1: Create the project directory\nSTEP 2: Write the main source file\nSTEP 3: Run the formatter over it"},
		{"dotted numbers", "1. Create the project directory\n2. Write the main source file\n3. Run the formatter over it"},
		{"paren numbers", "1) Create the project directory\n2) Write the main source file\n3) Run the formatter over it"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseResponse(tc.raw)
			if got.Clarification != nil {
				t.Fatalf("unexpected clarification: %+v", got.Clarification)
			}
			if len(got.Steps) != len(want) {
				t.Fatalf("got %d steps, want %d: %+v", len(got.Steps), len(want), got.Steps)
			}
			for i, s := range got.Steps {
				if s.Description != want[i] {
					t.Errorf("step %d = %q, want %q", i+1, s.Description, want[i])
				}
				if s.Number != i+1 {
					t.Errorf("step %d numbered %d", i+1, s.Number)
				}
			}
		})
	}
}

func TestParseResponse_StepObjectAliases(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		wantDesc string
		wantTool string
	}{
		{
			"documented fields",
			`{"steps": [{"description": "Write the file", "tool": "write_file"}]}`,
			"Write the file", "write_file",
		},
		{
			"desc alias",
			`{"steps": [{"desc": "Write the file"}]}`,
			"Write the file", "",
		},
		{
			"action and tool_name aliases",
			`{"steps": [{"action": "Write the file", "tool_name": "write_file"}]}`,
			"Write the file", "write_file",
		},
		{
			"title alias",
			`{"steps": [{"title": "Write the file"}]}`,
			"Write the file", "",
		},
		{
			"tasks envelope alias",
			`{"tasks": [{"step": "Write the file"}]}`,
			"Write the file", "",
		},
		{
			"plan array alias",
			`{"plan": ["Write the file"]}`,
			"Write the file", "",
		},
		{
			"nested plan wrapper",
			`{"plan": {"steps": ["Write the file"]}}`,
			"Write the file", "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseResponse(tc.raw)
			if len(got.Steps) != 1 {
				t.Fatalf("got %d steps, want 1: %+v", len(got.Steps), got.Steps)
			}
			if got.Steps[0].Description != tc.wantDesc {
				t.Errorf("description = %q, want %q", got.Steps[0].Description, tc.wantDesc)
			}
			if got.Steps[0].Tool != tc.wantTool {
				t.Errorf("tool = %q, want %q", got.Steps[0].Tool, tc.wantTool)
			}
		})
	}
}

func TestParseResponse_EmptyStepsJSONFallsThrough(t *testing.T) {
	raw := `{"steps": []}

Actually, the plan is:
1. Read the existing configuration file
2. Add the missing timeout field`

	got := parseResponse(raw)
	if got.Strategy != strategyNumbered {
		t.Fatalf("strategy = %q, want %q", got.Strategy, strategyNumbered)
	}
	if len(got.Steps) != 2 {
		t.Fatalf("got %d steps, want 2: %+v", len(got.Steps), got.Steps)
	}
	if got.Steps[0].Description != "Read the existing configuration file" {
		t.Errorf("step 1 = %q", got.Steps[0].Description)
	}
}

func TestParseResponse_BrokenJSONFallsThrough(t *testing.T) {
	raw := "{this is not json}\n1. Retry the download with backoff\n2. Verify the checksum afterwards"

	got := parseResponse(raw)
	if got.Strategy != strategyNumbered {
		t.Fatalf("strategy = %q, want %q", got.Strategy, strategyNumbered)
	}
	if len(got.Steps) != 2 {
		t.Fatalf("got %d steps, want 2: %+v", len(got.Steps), got.Steps)
	}
}

func TestParseResponse_LooseLineFallback(t *testing.T) {
	raw := `# Plan
Read through the existing configuration loader.
ok
- Swap the parser over to the new library.
` + "```" + `
short
` + "```"

	got := parseResponse(raw)
	if got.Strategy != strategyLoose {
		t.Fatalf("strategy = %q, want %q", got.Strategy, strategyLoose)
	}
	want := []string{
		"Read through the existing configuration loader.",
		"Swap the parser over to the new library.",
	}
	if len(got.Steps) != len(want) {
		t.Fatalf("got %d steps, want %d: %+v", len(got.Steps), len(want), got.Steps)
	}
	for i, s := range got.Steps {
		if s.Description != want[i] {
			t.Errorf("step %d = %q, want %q", i+1, s.Description, want[i])
		}
	}
}

func TestParseResponse_Clarification(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		raw := `{"clarification": {"question": "Which database should I target?", "options": ["postgres", "sqlite"], "context": "The task mentions storage but not the engine."}}`
		got := parseResponse(raw)
		if got.Clarification == nil {
			t.Fatal("expected a clarification")
		}
		if got.Clarification.Question != "Which database should I target?" {
			t.Errorf("question = %q", got.Clarification.Question)
		}
		if len(got.Clarification.Options) != 2 {
			t.Errorf("options = %v, want 2 entries", got.Clarification.Options)
		}
		if len(got.Steps) != 0 {
			t.Errorf("steps = %+v, want none", got.Steps)
		}
	})

	t.Run("fenced", func(t *testing.T) {
		raw := "```json\n{\"clarification\": {\"question\": \"Which environment?\"}}\n```"
		got := parseResponse(raw)
		if got.Clarification == nil || got.Clarification.Question != "Which environment?" {
			t.Fatalf("clarification = %+v", got.Clarification)
		}
	})

	t.Run("empty question ignored", func(t *testing.T) {
		got := parseResponse(`{"clarification": {"question": "  "}}`)
		if got.Clarification != nil {
			t.Fatalf("clarification = %+v, want nil", got.Clarification)
		}
		if len(got.Steps) != 0 {
			t.Fatalf("steps = %+v, want none", got.Steps)
		}
	})
}

func TestParseResponse_CapabilitySelections(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		raw := `{"steps": ["Write the greeting file"], "tools": ["write_file"], "skills": ["go-style"]}`
		got := parseResponse(raw)
		if len(got.Tools) != 1 || got.Tools[0] != "write_file" {
			t.Errorf("tools = %v", got.Tools)
		}
		if len(got.Skills) != 1 || got.Skills[0] != "go-style" {
			t.Errorf("skills = %v", got.Skills)
		}
	})

	t.Run("absent means empty", func(t *testing.T) {
		got := parseResponse(`{"steps": ["Write the greeting file"]}`)
		if len(got.Tools) != 0 {
			t.Errorf("tools = %v, want empty", got.Tools)
		}
		if len(got.Skills) != 0 {
			t.Errorf("skills = %v, want empty", got.Skills)
		}
	})
}

func TestParseResponse_NothingUsable(t *testing.T) {
	for _, raw := range []string{"", "   \n\t\n", "ok\nfine"} {
		got := parseResponse(raw)
		if len(got.Steps) != 0 || got.Clarification != nil {
			t.Errorf("parseResponse(%q) = %+v, want empty", raw, got)
		}
	}
}

func TestChunkSteps(t *testing.T) {
	mk := func(n int) []Step {
		steps := make([]Step, n)
		for i := range steps {
			steps[i] = Step{Number: i + 1, Description: strings.Repeat("x", 12)}
		}
		return steps
	}

	cases := []struct {
		name      string
		steps     int
		size      int
		wantSizes []int
	}{
		{"fits exactly", 10, 10, []int{10}},
		{"one over", 11, 10, []int{10, 1}},
		{"fifteen by ten", 15, 10, []int{10, 5}},
		{"three groups", 21, 10, []int{10, 10, 1}},
		{"empty", 0, 10, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := chunkSteps(mk(tc.steps), tc.size)
			if len(chunks) != len(tc.wantSizes) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tc.wantSizes))
			}
			next := 1
			for i, c := range chunks {
				if len(c) != tc.wantSizes[i] {
					t.Errorf("chunk %d has %d steps, want %d", i, len(c), tc.wantSizes[i])
				}
				for _, s := range c {
					if s.Number != next {
						t.Fatalf("chunk %d out of order: step %d, want %d", i, s.Number, next)
					}
					next++
				}
			}
		})
	}
}
