package changeset_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/changeset"
	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/task"
)

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func resultWith(files map[string]string) task.Result {
	var artifacts []task.Artifact
	for path, content := range files {
		artifacts = append(artifacts, task.Artifact{Content: content, Metadata: map[string]string{"path": path}})
	}
	return task.Result{Artifacts: artifacts, Success: true}
}

// TestApplyAndRollbackScenario covers a project containing
// src/a.txt="foo". Changeset modifies it to "bar" and creates src/b.txt="baz". After
// apply, disk reflects both changes; after rollback, the tree is restored and b.txt is
// gone, while the backup directory is retained.
func TestApplyAndRollbackScenario(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/a.txt", "foo")

	engine := changeset.NewEngine(root, changeset.NewRegistry())
	cs, err := engine.BuildFromResult(resultWith(map[string]string{
		"src/a.txt": "bar",
		"src/b.txt": "baz",
		}), "update a, create b", "")
	require.NoError(t, err)
	require.Len(t, cs.Files, 2)

	require.NoError(t, engine.Apply(cs, true))

	a, err := os.ReadFile(filepath.Join(root, "src/a.txt"))
	require.NoError(t, err)
	require.Equal(t, "bar", string(a))
	b, err := os.ReadFile(filepath.Join(root, "src/b.txt"))
	require.NoError(t, err)
	require.Equal(t, "baz", string(b))

	require.NoError(t, engine.Rollback(cs.ID))

	a, err = os.ReadFile(filepath.Join(root, "src/a.txt"))
	require.NoError(t, err)
	require.Equal(t, "foo", string(a))
	_, err = os.Stat(filepath.Join(root, "src/b.txt"))
	require.True(t, os.IsNotExist(err))

	backupDir := filepath.Join(root, ".backups", cs.ID)
	_, err = os.Stat(backupDir)
	require.NoError(t, err, "backup directory must be retained after rollback")
}

// TestPathUniquenessInvariant checks that within one changeset, each
// path appears at most once.
func TestPathUniquenessInvariant(t *testing.T) {
	root := t.TempDir()
	engine := changeset.NewEngine(root, changeset.NewRegistry())

	result := task.Result{Artifacts: []task.Artifact{
		{Content: "v1", Metadata: map[string]string{"path": "dup.txt"}},
		{Content: "v2", Metadata: map[string]string{"path": "dup.txt"}},
	}}
	_, err := engine.BuildFromResult(result, "dup", "")
	kind, ok := errkind.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errkind.Validation, kind)
}

type fakeGate struct {
	name string
	blocking bool
	parallel bool
	status changeset.GateStatus
	ran *bool
}

func (g fakeGate) Name() string { return g.name }
func (g fakeGate) IsBlocking() bool { return g.blocking }
func (g fakeGate) CanRunParallel() bool { return g.parallel }
func (g fakeGate) Validate(_ context.Context, _ changeset.Changeset, _ string) changeset.GateResult {
	if g.ran != nil {
		*g.ran = true
	}
	return changeset.GateResult{Status: g.status, Message: g.name + " ran"}
}

// TestSequentialGateChainHaltsOnBlockingFailure covers gates
// [format(non-blocking), lint(blocking), test(blocking)], lint returns Failed. Outcome:
// lint Failed, test not executed, can_auto_apply=false.
func TestSequentialGateChainHaltsOnBlockingFailure(t *testing.T) {
	testRan := false
	registry := changeset.NewRegistry(
		fakeGate{name: "format", blocking: false, status: changeset.Passed},
		fakeGate{name: "lint", blocking: true, status: changeset.Failed},
		fakeGate{name: "test", blocking: true, status: changeset.Passed, ran: &testRan},
	)
	engine := changeset.NewEngine(t.TempDir(), registry)
	cs := changeset.Changeset{ID: "cs-1"}

	results := engine.Validate(context.Background(), &cs, false)
	require.False(t, testRan, "test gate must not run once lint blocks the chain")
	require.False(t, results.CanAutoApply)
	require.Len(t, results.Gates, 2)
	require.Equal(t, "lint", results.Gates[1].Name)
	require.Equal(t, changeset.Failed, results.Gates[1].Status)
}

// TestNonBlockingFailureDoesNotPreventAutoApply checks that a Failed
// blocking gate makes can_auto_apply=false; a non-blocking Failure does not.
func TestNonBlockingFailureDoesNotPreventAutoApply(t *testing.T) {
	registry := changeset.NewRegistry(
		fakeGate{name: "format", blocking: false, status: changeset.Failed},
	)
	engine := changeset.NewEngine(t.TempDir(), registry)
	cs := changeset.Changeset{ID: "cs-2"}

	results := engine.Validate(context.Background(), &cs, false)
	require.True(t, results.CanAutoApply)
}

// TestApplyRefusesWithoutForceWhenGatesBlock checks that Apply rejects a changeset whose
// validation results say CanAutoApply is false, unless the caller passes force.
func TestApplyRefusesWithoutForceWhenGatesBlock(t *testing.T) {
	root := t.TempDir()
	engine := changeset.NewEngine(root, changeset.NewRegistry())
	cs := changeset.Changeset{
		ID: "cs-3",
		Files: []changeset.FileDiff{{Path: "x.txt", NewContent: "hi", ChangeType: changeset.Create}},
		Validation: &changeset.ValidationResults{CanAutoApply: false},
	}

	err := engine.Apply(cs, false)
	kind, ok := errkind.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errkind.Validation, kind)

	require.NoError(t, engine.Apply(cs, true))
	content, err := os.ReadFile(filepath.Join(root, "x.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi", string(content))
}

// TestApplyThenRollbackIsALawOfTheTree checks that apply(c);
// rollback(c) leaves the tree byte-identical to its pre-apply state.
func TestApplyThenRollbackIsALawOfTheTree(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "keep.txt", "original")

	engine := changeset.NewEngine(root, changeset.NewRegistry())
	cs, err := engine.BuildFromResult(resultWith(map[string]string{"keep.txt": "changed"}), "t", "")
	require.NoError(t, err)

	require.NoError(t, engine.Apply(cs, true))
	require.NoError(t, engine.Rollback(cs.ID))

	content, err := os.ReadFile(filepath.Join(root, "keep.txt"))
	require.NoError(t, err)
	require.Equal(t, "original", string(content))
}

func TestRollbackUnknownChangesetIsNotFound(t *testing.T) {
	engine := changeset.NewEngine(t.TempDir(), changeset.NewRegistry())
	err := engine.Rollback("ghost")
	kind, ok := errkind.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errkind.NotFound, kind)
}

func TestUnifiedDiffReportsChangedLineCounts(t *testing.T) {
	diffText, added, removed := changeset.UnifiedDiff("a.txt", "line1\nline2\n", "line1\nline2 changed\nline3\n")
	require.NotEmpty(t, diffText)
	require.Greater(t, added, 0)
	require.Greater(t, removed, 0)
}
