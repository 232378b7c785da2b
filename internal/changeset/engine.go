package changeset

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/task"
)

// Engine builds, validates, applies, and rolls back Changesets against one project root.
// One Engine is constructed per active session's project root.
type Engine struct {
	registry *Registry
	projectRoot string

	mu sync.Mutex
	applied map[string]Changeset
}

// NewEngine builds an Engine rooted at projectRoot, validating with registry.
func NewEngine(projectRoot string, registry *Registry) *Engine {
	return &Engine{
		projectRoot: projectRoot,
		registry: registry,
		applied: make(map[string]Changeset),
	}
}

// BuildFromResult derives a Changeset from a generator's task.Result. Each
// Artifact whose Metadata carries a "path" key names one emitted file; its Content is
// diffed against the corresponding on-disk file (or treated as a creation when absent).
func (e *Engine) BuildFromResult(result task.Result, title, description string) (Changeset, error) {
	seen := make(map[string]bool)
	cs := Changeset{
		ID: uuid.NewString(),
		Title: title,
		Description: description,
	}

	for _, artifact := range result.Artifacts {
		path, ok := artifact.Metadata["path"]
		if !ok || path == "" {
			continue
		}
		if seen[path] {
			return Changeset{}, errkind.New(errkind.Validation, "duplicate path in changeset: "+path)
		}
		seen[path] = true

		fd, err := e.buildFileDiff(path, artifact.Content)
		if err != nil {
			return Changeset{}, err
		}
		cs.Files = append(cs.Files, fd)
	}

	cs.Metadata = computeMetadata(cs.Files)
	return cs, nil
}

func (e *Engine) buildFileDiff(path, newContent string) (FileDiff, error) {
	abs := filepath.Join(e.projectRoot, path)
	original, err := os.ReadFile(abs) //nolint:gosec // path is a project-relative file under projectRoot
	changeType := Modify
	originalContent := ""
	if err != nil {
		if !os.IsNotExist(err) {
			return FileDiff{}, errkind.Wrap(errkind.Persistence, err, "failed to read original content of "+path)
		}
		changeType = Create
	} else {
		originalContent = string(original)
	}

	diffText, added, removed := UnifiedDiff(path, originalContent, newContent)
	return FileDiff{
		Path: path,
		OriginalContent: originalContent,
		NewContent: newContent,
		DiffText: diffText,
		ChangeType: changeType,
		Meta: map[string]string{"lines_added": strconv.Itoa(added), "lines_removed": strconv.Itoa(removed)},
	}, nil
}

func computeMetadata(files []FileDiff) Metadata {
	m := Metadata{TotalFiles: len(files)}
	for _, f := range files {
		_, added, removed := UnifiedDiff(f.Path, f.OriginalContent, f.NewContent)
		m.LinesAdded += added
		m.LinesRemoved += removed
		if strings.Contains(f.Path, "_test.") || strings.Contains(f.Path, "/test/") {
			m.AffectsTests = true
		}
		if isDependencyManifest(f.Path) {
			m.AffectsDependencies = true
		}
	}
	return m
}

func isDependencyManifest(path string) bool {
	base := filepath.Base(path)
	switch base {
	case "go.mod", "go.sum", "package.json", "package-lock.json", "requirements.txt", "Cargo.toml":
		return true
	default:
		return false
	}
}

// Validate runs the configured gate chain against cs using the given mode.
func (e *Engine) Validate(ctx context.Context, cs *Changeset, parallel bool) ValidationResults {
	var results ValidationResults
	if parallel {
		results = e.registry.RunParallel(ctx, *cs, e.projectRoot)
	} else {
		results = e.registry.RunSequential(ctx, *cs, e.projectRoot)
	}
	cs.Validation = &results
	return results
}

// Apply writes cs's file diffs to disk, backing up originals first. force
// bypasses the can_auto_apply gate.
func (e *Engine) Apply(cs Changeset, force bool) error {
	if cs.Validation != nil && !cs.Validation.CanAutoApply && !force {
		return errkind.New(errkind.Validation, "changeset has blocking gate failures; refusing apply without force")
	}

	backupDir := e.backupDir(cs.ID)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return errkind.Wrap(errkind.Persistence, err, "failed to create backup directory")
	}

	for _, f := range cs.Files {
		srcPath := f.Path
		if f.ChangeType == Rename {
			srcPath = f.OldPath
		}
		abs := filepath.Join(e.projectRoot, srcPath)
		if content, err := os.ReadFile(abs); err == nil { //nolint:gosec // project-relative path
			backupPath := filepath.Join(backupDir, srcPath)
			if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
				return errkind.Wrap(errkind.Persistence, err, "failed to create backup subdirectory for "+srcPath)
			}
			if err := os.WriteFile(backupPath, content, 0o644); err != nil { //nolint:gosec // backup, not secret material
				return errkind.Wrap(errkind.Persistence, err, "failed to back up "+srcPath)
			}
		}
	}

	manifest, err := json.MarshalIndent(cs, "", " ")
	if err != nil {
		return errkind.Wrap(errkind.Persistence, err, "failed to serialize changeset manifest")
	}
	if err := os.WriteFile(filepath.Join(backupDir, "changeset.json"), manifest, 0o644); err != nil { //nolint:gosec // manifest, not secret material
		return errkind.Wrap(errkind.Persistence, err, "failed to write changeset manifest")
	}

	for _, f := range cs.Files {
		if err := e.applyOne(f); err != nil {
			return err // apply is not atomic across files; caller must Rollback explicitly
		}
	}

	e.mu.Lock()
	e.applied[cs.ID] = cs
	e.mu.Unlock()
	return nil
}

func (e *Engine) applyOne(f FileDiff) error {
	switch f.ChangeType {
	case Create, Modify:
		return e.writeFile(f.Path, f.NewContent)
	case Delete:
		abs := filepath.Join(e.projectRoot, f.Path)
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return errkind.Wrap(errkind.Persistence, err, "failed to delete "+f.Path)
		}
		return nil
	case Rename:
		oldAbs := filepath.Join(e.projectRoot, f.OldPath)
		newAbs := filepath.Join(e.projectRoot, f.Path)
		if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
			return errkind.Wrap(errkind.Persistence, err, "failed to create parent directory for "+f.Path)
		}
		if err := os.Rename(oldAbs, newAbs); err != nil {
			return errkind.Wrap(errkind.Persistence, err, "failed to rename "+f.OldPath+" to "+f.Path)
		}
		if f.NewContent != "" {
			return e.writeFile(f.Path, f.NewContent)
		}
		return nil
	default:
		return errkind.New(errkind.Validation, "unknown change type for "+f.Path)
	}
}

func (e *Engine) writeFile(path, content string) error {
	abs := filepath.Join(e.projectRoot, path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errkind.Wrap(errkind.Persistence, err, "failed to create parent directory for "+path)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil { //nolint:gosec // project working-tree file, not secret material
		return errkind.Wrap(errkind.Persistence, err, "failed to write "+path)
	}
	return nil
}

// Rollback reverses a previously applied changeset in reverse file order, best-effort:
// a failure on one file is collected but does not stop the remaining files.
func (e *Engine) Rollback(changesetID string) error {
	e.mu.Lock()
	cs, ok := e.applied[changesetID]
	e.mu.Unlock()
	if !ok {
		return errkind.New(errkind.NotFound, "no applied changeset with id "+changesetID)
	}

	backupDir := e.backupDir(changesetID)
	var errs []string
	for i := len(cs.Files) - 1; i >= 0; i-- {
		if err := e.rollbackOne(backupDir, cs.Files[i]); err != nil {
			errs = append(errs, err.Error())
		}
	}

	e.mu.Lock()
	delete(e.applied, changesetID)
	e.mu.Unlock()

	if len(errs) > 0 {
		return errkind.New(errkind.Persistence, "rollback had "+strconv.Itoa(len(errs))+" failure(s): "+strings.Join(errs, "; "))
	}
	return nil
}

func (e *Engine) rollbackOne(backupDir string, f FileDiff) error {
	switch f.ChangeType {
	case Create:
		abs := filepath.Join(e.projectRoot, f.Path)
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return errkind.Wrap(errkind.Persistence, err, "failed to remove created file "+f.Path)
		}
		return nil
	case Modify, Delete:
		backupPath := filepath.Join(backupDir, f.Path)
		content, err := os.ReadFile(backupPath) //nolint:gosec // backup directory is engine-controlled
		if err != nil {
			if os.IsNotExist(err) {
				return nil // nothing was backed up, so there was nothing to restore
			}
			return errkind.Wrap(errkind.Persistence, err, "failed to read backup for "+f.Path)
		}
		return e.writeFile(f.Path, string(content))
	case Rename:
		newAbs := filepath.Join(e.projectRoot, f.Path)
		oldAbs := filepath.Join(e.projectRoot, f.OldPath)
		if _, err := os.Stat(newAbs); os.IsNotExist(err) {
			return nil // new path already gone: treat as already-rolled-back
		}
		if err := os.MkdirAll(filepath.Dir(oldAbs), 0o755); err != nil {
			return errkind.Wrap(errkind.Persistence, err, "failed to create parent directory for "+f.OldPath)
		}
		if err := os.Rename(newAbs, oldAbs); err != nil {
			return errkind.Wrap(errkind.Persistence, err, "failed to rename "+f.Path+" back to "+f.OldPath)
		}
		backupPath := filepath.Join(backupDir, f.OldPath)
		if content, err := os.ReadFile(backupPath); err == nil { //nolint:gosec // backup directory is engine-controlled
			return e.writeFile(f.OldPath, string(content))
		}
		return nil
	default:
		return errkind.New(errkind.Validation, "unknown change type for "+f.Path)
	}
}

func (e *Engine) backupDir(changesetID string) string {
	return filepath.Join(e.projectRoot, ".backups", changesetID)
}

