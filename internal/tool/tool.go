// Package tool provides the tool-execution layer: a registry of callable
// tools with per-tool permission policies, sandboxed file built-ins, and
// skill packs the planner can select for an issue.
//
// Ordinary tool failures never surface as Go errors. Execute folds them
// into "[REJECTED] ..." result strings so the reasoning loop can show the
// model what went wrong and let it react; only context cancellation
// propagates as an error.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dinoki-ai/osagent/internal/model"
)

// PermissionPolicy gates tool execution.
type PermissionPolicy string

const (
	// PolicyAuto executes without asking.
	PolicyAuto PermissionPolicy = "auto"
	// PolicyAsk requires approval before each execution.
	PolicyAsk PermissionPolicy = "ask"
	// PolicyDeny refuses every execution.
	PolicyDeny PermissionPolicy = "deny"
)

// Definition describes one callable tool.
type Definition struct {
	// Name is the identifier the model calls the tool by.
	Name string `json:"name"`

	// Description is shown to the model in the tool catalog.
	Description string `json:"description"`

	// Parameters is a JSON Schema for the argument object.
	Parameters json.RawMessage `json:"parameters,omitempty"`

	// Requirements lists host capabilities the tool needs, e.g.
	// "filesystem".
	Requirements []string `json:"requirements,omitempty"`

	// Policy gates execution. Empty is treated as auto.
	Policy PermissionPolicy `json:"permission_policy,omitempty"`
}

// ModelDefinition projects the definition into the model package's
// catalog shape.
func (d Definition) ModelDefinition() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Parameters,
	}
}

// Handler executes a tool call. The returned string is shown to the
// model verbatim; errors are folded into "[REJECTED] ..." results by the
// registry.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Approver decides whether an ask-policy tool call may proceed.
type Approver interface {
	Approve(ctx context.Context, name, argsJSON, issueID string) (bool, error)
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(ctx context.Context, name, argsJSON, issueID string) (bool, error)

// Approve calls f.
func (f ApproverFunc) Approve(ctx context.Context, name, argsJSON, issueID string) (bool, error) {
	return f(ctx, name, argsJSON, issueID)
}

type registration struct {
	def     Definition
	handler Handler
}

// Registry holds the callable tools and dispatches executions through
// their permission policies. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*registration
	approver Approver
}

// NewRegistry creates an empty registry with no approver; until one is
// set, ask-policy tools are refused.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*registration),
	}
}

// Register adds a tool. Names must be unique and must not collide with
// the meta-tools the executor intercepts.
func (r *Registry) Register(def Definition, handler Handler) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool %s has no handler", def.Name)
	}
	if IsMetaTool(def.Name) {
		return fmt.Errorf("tool name %s is reserved", def.Name)
	}
	if def.Policy == "" {
		def.Policy = PolicyAuto
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	r.tools[def.Name] = &registration{def: def, handler: handler}
	return nil
}

// SetApprover installs the decision hook consulted for ask-policy tools.
func (r *Registry) SetApprover(a Approver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approver = a
}

// ApplyPolicies overrides registered tool policies by name. Unknown tool
// names and invalid policy values are ignored; config validation reports
// those before execution starts.
func (r *Registry) ApplyPolicies(policies map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, value := range policies {
		reg, ok := r.tools[name]
		if !ok {
			continue
		}
		switch p := PermissionPolicy(strings.ToLower(value)); p {
		case PolicyAuto, PolicyAsk, PolicyDeny:
			reg.def.Policy = p
		}
	}
}

// Definitions returns all registered tool definitions sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, reg := range r.tools {
		defs = append(defs, reg.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ModelDefinitions returns the registered tools projected into the model
// package's catalog shape, sorted by name. Meta-tools are not included;
// the executor appends those itself.
func (r *Registry) ModelDefinitions() []model.ToolDefinition {
	defs := r.Definitions()
	out := make([]model.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.ModelDefinition())
	}
	return out
}

// Execute runs the named tool. Refusals and tool-level failures return a
// "[REJECTED] ..." result string with a nil error; only context
// cancellation returns a Go error.
func (r *Registry) Execute(ctx context.Context, name, argsJSON, issueID string) (string, error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	approver := r.approver
	r.mu.RUnlock()

	if !ok {
		return "[REJECTED] unknown tool: " + name, nil
	}

	switch reg.def.Policy {
	case PolicyDeny:
		return fmt.Sprintf("[REJECTED] tool %s is denied by policy", name), nil
	case PolicyAsk:
		if approver == nil {
			return fmt.Sprintf("[REJECTED] tool %s requires approval and no approver is configured", name), nil
		}
		approved, err := approver.Approve(ctx, name, argsJSON, issueID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return fmt.Sprintf("[REJECTED] tool %s approval failed: %v", name, err), nil
		}
		if !approved {
			return fmt.Sprintf("[REJECTED] tool %s was not approved", name), nil
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	result, err := reg.handler(ctx, json.RawMessage(argsJSON))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "[REJECTED] " + err.Error(), nil
	}
	return result, nil
}
