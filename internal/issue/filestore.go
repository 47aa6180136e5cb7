package issue

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	stateFileName  = "state.json"
	eventsFileName = "events.jsonl"
)

// stateSnapshot is the on-disk form of tasks, issues, and artifacts.
// Audit events live separately in the append-only events.jsonl.
type stateSnapshot struct {
	Tasks     []*Task     `json:"tasks"`
	Issues    []*Issue    `json:"issues"`
	Artifacts []*Artifact `json:"artifacts,omitempty"`
}

// FileStore is a Store that persists under a state directory: one
// state.json snapshot rewritten atomically on every mutation, plus an
// append-only events.jsonl holding the audit trail one JSON object per
// line. An in-memory store backs all reads; NewFileStore loads existing
// state so runs survive process restarts.
type FileStore struct {
	mu  sync.Mutex
	mem *MemStore
	dir string
}

// NewFileStore opens (or creates) a file store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	fs := &FileStore{
		mem: NewMemStore(),
		dir: dir,
	}

	if err := fs.loadState(); err != nil {
		return nil, err
	}
	if err := fs.loadEvents(); err != nil {
		return nil, err
	}

	return fs, nil
}

// Dir returns the state directory backing this store.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// loadState reads state.json into the in-memory store, if it exists.
func (fs *FileStore) loadState() error {
	data, err := os.ReadFile(filepath.Join(fs.dir, stateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}

	fs.mem.restore(&snap)
	return nil
}

// loadEvents replays events.jsonl into the in-memory store. Corrupt lines
// are skipped so a torn final write cannot prevent startup.
func (fs *FileStore) loadEvents() error {
	file, err := os.Open(filepath.Join(fs.dir, eventsFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open events file: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)

	// Audit payloads can be large; raise the line limit.
	const maxScanTokenSize = 1024 * 1024
	buf := make([]byte, maxScanTokenSize)
	scanner.Buffer(buf, maxScanTokenSize)

	ctx := context.Background()
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var ev AuditEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		_ = fs.mem.AppendEvent(ctx, &ev)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read events file: %w", err)
	}
	return nil
}

// saveState writes the current snapshot to state.json atomically.
func (fs *FileStore) saveState() error {
	data, err := json.MarshalIndent(fs.mem.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return atomicWriteFile(filepath.Join(fs.dir, stateFileName), data, 0644)
}

// appendEventLine appends one audit event to events.jsonl.
func (fs *FileStore) appendEventLine(ev *AuditEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(fs.dir, eventsFileName),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open events file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// CreateTask persists a new task.
func (fs *FileStore) CreateTask(ctx context.Context, t *Task) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.mem.CreateTask(ctx, t); err != nil {
		return err
	}
	return fs.saveState()
}

// GetTask returns the task with the given ID.
func (fs *FileStore) GetTask(ctx context.Context, id string) (*Task, error) {
	return fs.mem.GetTask(ctx, id)
}

// CreateIssue persists a new issue.
func (fs *FileStore) CreateIssue(ctx context.Context, iss *Issue) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.mem.CreateIssue(ctx, iss); err != nil {
		return err
	}
	return fs.saveState()
}

// GetIssue returns the issue with the given ID.
func (fs *FileStore) GetIssue(ctx context.Context, id string) (*Issue, error) {
	return fs.mem.GetIssue(ctx, id)
}

// UpdateIssue replaces a stored issue and bumps its UpdatedAt.
func (fs *FileStore) UpdateIssue(ctx context.Context, iss *Issue) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.mem.UpdateIssue(ctx, iss); err != nil {
		return err
	}
	return fs.saveState()
}

// ReadyIssues returns open issues ordered by priority descending, then
// CreatedAt ascending. An empty taskID spans all tasks.
func (fs *FileStore) ReadyIssues(ctx context.Context, taskID string) ([]*Issue, error) {
	return fs.mem.ReadyIssues(ctx, taskID)
}

// ListIssues returns issues of every status ordered by CreatedAt
// ascending. An empty taskID spans all tasks.
func (fs *FileStore) ListIssues(ctx context.Context, taskID string) ([]*Issue, error) {
	return fs.mem.ListIssues(ctx, taskID)
}

// AppendEvent appends an audit event to the trail and to events.jsonl.
func (fs *FileStore) AppendEvent(ctx context.Context, ev *AuditEvent) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.mem.AppendEvent(ctx, ev); err != nil {
		return err
	}
	return fs.appendEventLine(ev)
}

// ListEvents returns audit events for an issue in append order. An empty
// issueID returns the full trail.
func (fs *FileStore) ListEvents(ctx context.Context, issueID string) ([]*AuditEvent, error) {
	return fs.mem.ListEvents(ctx, issueID)
}

// CreateArtifact persists an artifact.
func (fs *FileStore) CreateArtifact(ctx context.Context, a *Artifact) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.mem.CreateArtifact(ctx, a); err != nil {
		return err
	}
	return fs.saveState()
}

// ListArtifacts returns artifacts for a task in creation order. An empty
// taskID returns all artifacts.
func (fs *FileStore) ListArtifacts(ctx context.Context, taskID string) ([]*Artifact, error) {
	return fs.mem.ListArtifacts(ctx, taskID)
}

// atomicWriteFile writes data to a file atomically by writing to a
// temporary file in the same directory, then renaming. The target is never
// left in a partially written state.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
