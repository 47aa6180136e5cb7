package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxReadBytes caps read_file output so one large file cannot flood the
// conversation window.
const maxReadBytes = 64 * 1024

// RegisterFileTools registers the built-in file tools, confined to root.
// An empty root confines them to the current directory.
func RegisterFileTools(r *Registry, root string) error {
	if root == "" {
		root = "."
	}

	builtins := []struct {
		def     Definition
		handler Handler
	}{
		{
			def: Definition{
				Name:        "write_file",
				Description: "Write content to a file. The path is relative to the workspace root; parent directories are created as needed.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"path": {"type": "string", "description": "Relative file path"},
						"content": {"type": "string", "description": "Full file content"}
					},
					"required": ["path", "content"]
				}`),
				Requirements: []string{"filesystem"},
				Policy:       PolicyAuto,
			},
			handler: writeFileHandler(root),
		},
		{
			def: Definition{
				Name:        "read_file",
				Description: "Read a file's content. The path is relative to the workspace root.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"path": {"type": "string", "description": "Relative file path"}
					},
					"required": ["path"]
				}`),
				Requirements: []string{"filesystem"},
				Policy:       PolicyAuto,
			},
			handler: readFileHandler(root),
		},
		{
			def: Definition{
				Name:        "list_files",
				Description: "List directory entries. The path is relative to the workspace root; omit it for the root itself.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"path": {"type": "string", "description": "Relative directory path"}
					}
				}`),
				Requirements: []string{"filesystem"},
				Policy:       PolicyAuto,
			},
			handler: listFilesHandler(root),
		},
	}

	for _, b := range builtins {
		if err := r.Register(b.def, b.handler); err != nil {
			return err
		}
	}
	return nil
}

func writeFileHandler(root string) Handler {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		var parsed struct {
			Path    string `json:"path"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(args, &parsed); err != nil {
			return "", fmt.Errorf("invalid write_file arguments: %w", err)
		}
		if parsed.Path == "" {
			return "", fmt.Errorf("write_file requires a path")
		}

		path, err := sandboxPath(root, parsed.Path)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("failed to create parent directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(parsed.Content), 0644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", parsed.Path, err)
		}
		return fmt.Sprintf("wrote %d bytes to %s", len(parsed.Content), parsed.Path), nil
	}
}

func readFileHandler(root string) Handler {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		var parsed struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal(args, &parsed); err != nil {
			return "", fmt.Errorf("invalid read_file arguments: %w", err)
		}
		if parsed.Path == "" {
			return "", fmt.Errorf("read_file requires a path")
		}

		path, err := sandboxPath(root, parsed.Path)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", parsed.Path, err)
		}
		if len(data) > maxReadBytes {
			return string(data[:maxReadBytes]) + "\n[truncated]", nil
		}
		return string(data), nil
	}
}

func listFilesHandler(root string) Handler {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		var parsed struct {
			Path string `json:"path"`
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &parsed); err != nil {
				return "", fmt.Errorf("invalid list_files arguments: %w", err)
			}
		}

		path, err := sandboxPath(root, parsed.Path)
		if err != nil {
			return "", err
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return "", fmt.Errorf("failed to list %s: %w", parsed.Path, err)
		}

		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			return "(empty directory)", nil
		}
		return strings.Join(names, "\n"), nil
	}
}

// sandboxPath resolves path against the sandbox root and rejects
// anything that escapes it. An empty path resolves to the root itself.
func sandboxPath(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve tools root: %w", err)
	}
	if path == "" {
		return absRoot, nil
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path %q contains directory traversal", path)
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("path %q must be relative to the tools root", path)
	}

	joined := filepath.Clean(filepath.Join(absRoot, path))
	rel, err := filepath.Rel(absRoot, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the tools root", path)
	}
	return joined, nil
}
