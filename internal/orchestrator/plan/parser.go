package plan

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/dinoki-ai/osagent/internal/util"
)

// Parse strategy names, recorded for logging.
const (
	strategyJSON     = "json"
	strategyBlock    = "json-block"
	strategyNumbered = "numbered"
	strategyLoose    = "loose"
)

// parsedResponse is the normalized result of the strategy chain.
type parsedResponse struct {
	Steps         []Step
	Tools         []string
	Skills        []string
	Clarification *ClarificationRequest
	Strategy      string
}

// wireResponse is the tolerated JSON envelope of a planning response.
// Local models are loose about field names, so common aliases are
// accepted alongside the documented ones.
type wireResponse struct {
	Clarification *wireClarification `json:"clarification"`
	Steps         []json.RawMessage  `json:"steps"`
	Tasks         []json.RawMessage  `json:"tasks"`
	Actions       []json.RawMessage  `json:"actions"`
	Plan          json.RawMessage    `json:"plan"`
	Tools         []string           `json:"tools"`
	Skills        []string           `json:"skills"`
}

type wireClarification struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Context  string   `json:"context"`
}

// wireStep is a single step object with field aliases. Step items may
// also be plain strings; decodeStep handles both.
type wireStep struct {
	Description string `json:"description"`
	Desc        string `json:"desc"`
	Step        string `json:"step"`
	Action      string `json:"action"`
	Text        string `json:"text"`
	Title       string `json:"title"`
	Tool        string `json:"tool"`
	ToolName    string `json:"tool_name"`
}

var (
	stepLineRe     = regexp.MustCompile(`(?i)^step\s+(\d+)\s*[:.\-]\s*(.+)$`)
	numberedLineRe = regexp.MustCompile(`^(\d+)[.)]\s+(.+)$`)
)

// parseResponse runs the strategy chain over a raw model response. The
// first strategy that yields steps or a clarification wins. A response
// that defeats every strategy comes back with no steps at all; the
// caller decides what that means.
func parseResponse(raw string) *parsedResponse {
	if pr, ok := decodeResponse([]byte(stripFences(raw))); ok {
		pr.Strategy = strategyJSON
		return finalize(pr)
	}
	if pr, ok := decodeJSONBlocks(raw); ok {
		pr.Strategy = strategyBlock
		return finalize(pr)
	}
	if steps := parseNumberedLines(raw); len(steps) > 0 {
		return finalize(&parsedResponse{Steps: steps, Strategy: strategyNumbered})
	}
	if steps := parseLooseLines(raw); len(steps) > 0 {
		return finalize(&parsedResponse{Steps: steps, Strategy: strategyLoose})
	}
	return &parsedResponse{}
}

// finalize assigns sequential step numbers.
func finalize(pr *parsedResponse) *parsedResponse {
	for i := range pr.Steps {
		pr.Steps[i].Number = i + 1
	}
	return pr
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeResponse parses data as a wireResponse and normalizes it. It
// reports ok only when the result carries steps or a clarification, so
// parseable-but-empty JSON falls through to the text strategies.
func decodeResponse(data []byte) (*parsedResponse, bool) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, false
	}

	raw := w.Steps
	if len(raw) == 0 {
		raw = w.Tasks
	}
	if len(raw) == 0 {
		raw = w.Actions
	}

	// A "plan" field may hold the step array directly or wrap the whole
	// response one level down.
	if len(raw) == 0 && len(w.Plan) > 0 {
		var arr []json.RawMessage
		if err := json.Unmarshal(w.Plan, &arr); err == nil {
			raw = arr
		} else if nested, ok := decodeResponse(w.Plan); ok {
			return nested, true
		}
	}

	pr := &parsedResponse{Tools: w.Tools, Skills: w.Skills}
	for _, r := range raw {
		if s, ok := decodeStep(r); ok {
			pr.Steps = append(pr.Steps, s)
		}
	}
	if w.Clarification != nil && strings.TrimSpace(w.Clarification.Question) != "" {
		pr.Clarification = &ClarificationRequest{
			Question: strings.TrimSpace(w.Clarification.Question),
			Options:  w.Clarification.Options,
			Context:  strings.TrimSpace(w.Clarification.Context),
		}
	}

	if len(pr.Steps) == 0 && pr.Clarification == nil {
		return nil, false
	}
	return pr, true
}

// decodeStep accepts a step as either a bare string or an object with
// aliased fields. Entries with no usable description are dropped.
func decodeStep(raw json.RawMessage) (Step, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return Step{}, false
		}
		return Step{Description: s}, true
	}

	var w wireStep
	if err := json.Unmarshal(raw, &w); err != nil {
		return Step{}, false
	}
	desc := strings.TrimSpace(firstNonEmpty(w.Description, w.Desc, w.Step, w.Action, w.Text, w.Title))
	if desc == "" {
		return Step{}, false
	}
	return Step{
		Description: desc,
		Tool:        strings.TrimSpace(firstNonEmpty(w.Tool, w.ToolName)),
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// decodeJSONBlocks scans prose for balanced {...} blocks and decodes each
// in turn until one yields a usable response.
func decodeJSONBlocks(s string) (*parsedResponse, bool) {
	rest := s
	for {
		start, end, ok := util.BalancedJSONBlock(rest)
		if !ok {
			return nil, false
		}
		if pr, ok := decodeResponse([]byte(rest[start:end])); ok {
			return pr, true
		}
		rest = rest[end:]
	}
}

// parseNumberedLines extracts steps from "STEP N:", "1." and "1)" lines.
func parseNumberedLines(s string) []Step {
	var steps []Step
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := stepLineRe.FindStringSubmatch(line); m != nil {
			steps = append(steps, Step{Description: strings.TrimSpace(m[2])})
			continue
		}
		if m := numberedLineRe.FindStringSubmatch(line); m != nil {
			steps = append(steps, Step{Description: strings.TrimSpace(m[2])})
		}
	}
	return steps
}

// parseLooseLines is the last resort: every non-trivial line becomes a
// step. Headers, fences, JSON syntax, and short fragments are skipped.
func parseLooseLines(s string) []Step {
	var steps []Step
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		if len(line) <= 10 {
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") {
			continue
		}
		// Stray structural lines from a failed JSON parse are not steps.
		if strings.ContainsAny(line[:1], "{}[]\"") {
			continue
		}
		steps = append(steps, Step{Description: line})
	}
	return steps
}

// chunkSteps splits steps into groups of at most size, preserving order.
func chunkSteps(steps []Step, size int) [][]Step {
	if size <= 0 || len(steps) == 0 {
		return nil
	}
	chunks := make([][]Step, 0, (len(steps)+size-1)/size)
	for start := 0; start < len(steps); start += size {
		end := min(start+size, len(steps))
		chunks = append(chunks, steps[start:end:end])
	}
	return chunks
}
