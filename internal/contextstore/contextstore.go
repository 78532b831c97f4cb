// Package contextstore persists per-task shared context documents and
// per-(task, agent) private notes under the project state directory. Shared
// documents are YAML with append-only lists; private notes are append-only
// markdown. Writers hold the project advisory lock and fsync before
// releasing; readers go lock-free and rely on the append-only discipline.
package contextstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskorch/tm/internal/app"
	"github.com/taskorch/tm/internal/models"
	"github.com/taskorch/tm/internal/store"
)

// File size bounds. A write that would push the file past the bound fails
// without modifying it.
const (
	MaxSharedBytes  = 10 << 20
	MaxPrivateBytes = 5 << 20
)

// EntryType classifies a shared-context contribution.
type EntryType string

// Contribution entry types.
const (
	EntryProgress  EntryType = "progress"
	EntryUpdate    EntryType = "update"
	EntryFix       EntryType = "fix"
	EntryDiscovery EntryType = "discovery"
	EntrySync      EntryType = "sync"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryProgress, EntryUpdate, EntryFix, EntryDiscovery, EntrySync:
		return true
	}
	return false
}

// Contribution is one per-agent entry in the shared document.
type Contribution struct {
	AgentID   string    `yaml:"agent_id" json:"agent_id"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Type      EntryType `yaml:"type" json:"type"`
	Content   string    `yaml:"content" json:"content"`
}

// Discovery is a tagged finding shared with all agents on a task.
type Discovery struct {
	AgentID   string    `yaml:"agent_id" json:"agent_id"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Impact    string    `yaml:"impact,omitempty" json:"impact,omitempty"`
	Tags      []string  `yaml:"tags,omitempty" json:"tags,omitempty"`
	Content   string    `yaml:"content" json:"content"`
}

// SyncPoint marks an agreed coordination point between agents.
type SyncPoint struct {
	AgentID   string    `yaml:"agent_id" json:"agent_id"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Content   string    `yaml:"content" json:"content"`
}

// SharedContext is the per-task shared document. The global section is
// replaceable; all lists are append-only. Unknown top-level keys survive a
// read-modify-write cycle via the inline map.
type SharedContext struct {
	Global      string         `yaml:"global,omitempty" json:"global,omitempty"`
	Agents      []Contribution `yaml:"agents,omitempty" json:"agents,omitempty"`
	Discoveries []Discovery    `yaml:"discoveries,omitempty" json:"discoveries,omitempty"`
	SyncPoints  []SyncPoint    `yaml:"sync_points,omitempty" json:"sync_points,omitempty"`

	Extra map[string]any `yaml:",inline" json:"-"`
}

// Store reads and writes context files for one project state directory.
type Store struct {
	stateDir string
	fsync    bool
}

// New returns a Store rooted at stateDir. Fsync is relaxed in test mode.
func New(stateDir string) *Store {
	return &Store{stateDir: stateDir, fsync: !app.TestMode()}
}

func (s *Store) sharedPath(taskID string) string {
	return filepath.Join(app.ContextsDir(s.stateDir), taskID+".yaml")
}

func (s *Store) notePath(taskID, agentID string) string {
	return filepath.Join(app.NotesDir(s.stateDir), taskID+"_"+agentID+".md")
}

// ReadShared loads the shared document for a task. A missing file yields an
// empty document, not an error.
func (s *Store) ReadShared(taskID string) (*SharedContext, error) {
	b, err := os.ReadFile(s.sharedPath(taskID)) //nolint:gosec // G304: path derived from trusted state dir
	if os.IsNotExist(err) {
		return &SharedContext{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read shared context: %w", err)
	}
	var doc SharedContext
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, models.Wrap(models.KindCorrupt, err, "shared context for task %s is not valid YAML", taskID)
	}
	return &doc, nil
}

// mutateShared applies fn to the shared document under the project lock and
// persists the result atomically (temp file, fsync, rename).
func (s *Store) mutateShared(taskID string, fn func(*SharedContext) error) error {
	lock, err := store.AcquireProjectLock(app.LockPath(s.stateDir), store.DefaultLockTimeout)
	if err != nil {
		return err
	}
	defer lock.Release()

	doc, err := s.ReadShared(taskID)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}

	b, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode shared context: %w", err)
	}
	if len(b) > MaxSharedBytes {
		return models.E(models.KindSizeExceeded,
			"shared context for task %s would exceed %d bytes", taskID, MaxSharedBytes)
	}

	path := s.sharedPath(taskID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create contexts dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+taskID+"-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp context file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write shared context: %w", err)
	}
	if s.fsync {
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("sync shared context: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close shared context: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace shared context: %w", err)
	}
	return nil
}

// SetGlobal replaces the shared document's global section.
func (s *Store) SetGlobal(taskID, content string) error {
	return s.mutateShared(taskID, func(doc *SharedContext) error {
		doc.Global = content
		return nil
	})
}

// AppendContribution appends a typed per-agent entry.
func (s *Store) AppendContribution(taskID, agentID string, entryType EntryType, content string) error {
	if !entryType.Valid() {
		return models.E(models.KindInvalidInput, "unknown context entry type %q", entryType)
	}
	if strings.TrimSpace(content) == "" {
		return models.E(models.KindInvalidInput, "context entry content is required")
	}
	return s.mutateShared(taskID, func(doc *SharedContext) error {
		doc.Agents = append(doc.Agents, Contribution{
			AgentID:   agentID,
			Timestamp: time.Now().UTC(),
			Type:      entryType,
			Content:   content,
		})
		return nil
	})
}

// AppendDiscovery appends a tagged discovery.
func (s *Store) AppendDiscovery(taskID, agentID, content, impact string, tags []string) error {
	if strings.TrimSpace(content) == "" {
		return models.E(models.KindInvalidInput, "discovery content is required")
	}
	return s.mutateShared(taskID, func(doc *SharedContext) error {
		doc.Discoveries = append(doc.Discoveries, Discovery{
			AgentID:   agentID,
			Timestamp: time.Now().UTC(),
			Impact:    impact,
			Tags:      tags,
			Content:   content,
		})
		return nil
	})
}

// AppendSyncPoint appends a coordination marker.
func (s *Store) AppendSyncPoint(taskID, agentID, content string) error {
	if strings.TrimSpace(content) == "" {
		return models.E(models.KindInvalidInput, "sync point content is required")
	}
	return s.mutateShared(taskID, func(doc *SharedContext) error {
		doc.SyncPoints = append(doc.SyncPoints, SyncPoint{
			AgentID:   agentID,
			Timestamp: time.Now().UTC(),
			Content:   content,
		})
		return nil
	})
}

// AppendNote appends to an agent's private note for a task. The size bound
// is checked against the existing file before anything is written.
func (s *Store) AppendNote(taskID, agentID, text string) error {
	if strings.TrimSpace(text) == "" {
		return models.E(models.KindInvalidInput, "note text is required")
	}

	lock, err := store.AcquireProjectLock(app.LockPath(s.stateDir), store.DefaultLockTimeout)
	if err != nil {
		return err
	}
	defer lock.Release()

	path := s.notePath(taskID, agentID)
	entry := fmt.Sprintf("\n## %s\n\n%s\n", time.Now().UTC().Format(time.RFC3339), text)

	var existing int64
	if info, statErr := os.Stat(path); statErr == nil {
		existing = info.Size()
	}
	if existing+int64(len(entry)) > MaxPrivateBytes {
		return models.E(models.KindSizeExceeded,
			"private note for task %s would exceed %d bytes", taskID, MaxPrivateBytes)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create notes dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // G304: path derived from trusted state dir
	if err != nil {
		return fmt.Errorf("open private note: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("append private note: %w", err)
	}
	if s.fsync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync private note: %w", err)
		}
	}
	return nil
}

// ReadNote returns an agent's private note for a task; empty if absent.
func (s *Store) ReadNote(taskID, agentID string) (string, error) {
	b, err := os.ReadFile(s.notePath(taskID, agentID)) //nolint:gosec // G304: path derived from trusted state dir
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read private note: %w", err)
	}
	return string(b), nil
}
