package facade_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/agentrt"
	"github.com/infer-no-dev/devkit/internal/bus"
	"github.com/infer-no-dev/devkit/internal/changeset"
	"github.com/infer-no-dev/devkit/internal/facade"
	"github.com/infer-no-dev/devkit/internal/provider"
	"github.com/infer-no-dev/devkit/internal/session"
	"github.com/infer-no-dev/devkit/internal/session/fsstore"
	"github.com/infer-no-dev/devkit/internal/task"
)

func newFacade(t *testing.T) (*facade.Facade, *agentrt.Runtime) {
	t.Helper()
	backend, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	store := session.NewStore(backend)
	t.Cleanup(store.Close)

	rt := agentrt.New(4)
	t.Cleanup(rt.Stop)

	f := facade.New(provider.New(""), rt, bus.New(0), store)
	return f, rt
}

func TestSubmitTaskDispatchesAndRecordsResult(t *testing.T) {
	f, rt := newFacade(t)
	require.NoError(t, rt.Register(agentrt.NewMockAgent("coder", task.KindCodeGeneration.Name)))

	sess, err := f.CreateSession(context.Background(), "proj", "alice", "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := f.SubmitTask(ctx, sess.ID, "write a function", task.KindCodeGeneration, task.Normal)
	require.NoError(t, err)
	require.True(t, result.Success)

	updated, err := f.Sessions.Load(context.Background(), sess.ID)
	require.NoError(t, err)
	info, ok := updated.Agents["coder"]
	require.True(t, ok)
	require.Equal(t, "idle", info.Status)
}

func TestSubmitTaskNoCapableAgentIsNotFound(t *testing.T) {
	f, _ := newFacade(t)
	sess, err := f.CreateSession(context.Background(), "proj", "alice", "")
	require.NoError(t, err)

	_, err = f.SubmitTask(context.Background(), sess.ID, "analyze", task.KindAnalysis, task.Normal)
	require.Error(t, err)
}

func TestSubmitTaskUnknownSessionIsNotFound(t *testing.T) {
	f, rt := newFacade(t)
	require.NoError(t, rt.Register(agentrt.NewMockAgent("coder", task.KindCodeGeneration.Name)))

	_, err := f.SubmitTask(context.Background(), "ghost", "write code", task.KindCodeGeneration, task.Normal)
	require.Error(t, err)
}

func TestGenerateCodeProducesDraftArtifactAndChangeset(t *testing.T) {
	f, rt := newFacade(t)
	agent := agentrt.NewMockAgent("coder", task.KindCodeGeneration.Name)
	agent.ProcessFunc = func(_ context.Context, t task.Task) (task.Result, error) {
		return task.Result{TaskID: t.ID, AgentName: "coder", Success: true, Output: "package main\n"}, nil
	}
	require.NoError(t, rt.Register(agent))

	root := t.TempDir()
	sess, err := f.CreateSession(context.Background(), "proj", "alice", root)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	artifact, cs, err := f.GenerateCode(ctx, sess.ID, "a hello world program", "main.go", "go")
	require.NoError(t, err)
	require.Equal(t, "draft", artifact.Status)
	require.Equal(t, "package main\n", artifact.Content)
	require.Len(t, cs.Files, 1)
	require.Equal(t, "main.go", cs.Files[0].Path)
	require.Equal(t, changeset.Create, cs.Files[0].ChangeType)

	updated, err := f.Sessions.Load(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, updated.Artifacts, 1)
	require.Equal(t, "source_code", updated.Artifacts[0].Kind)
}

func TestGenerateCodeFailureIsPropagated(t *testing.T) {
	f, rt := newFacade(t)
	agent := agentrt.NewMockAgent("coder", task.KindCodeGeneration.Name)
	agent.ProcessFunc = func(_ context.Context, t task.Task) (task.Result, error) {
		return task.Result{TaskID: t.ID, AgentName: "coder", Success: false}, nil
	}
	require.NoError(t, rt.Register(agent))

	sess, err := f.CreateSession(context.Background(), "proj", "alice", t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err = f.GenerateCode(ctx, sess.ID, "broken prompt", "out.go", "go")
	require.Error(t, err)
}

func TestCreateSessionRecordsProjectRootInConfig(t *testing.T) {
	f, _ := newFacade(t)
	root := t.TempDir()
	sess, err := f.CreateSession(context.Background(), "proj", "alice", root)
	require.NoError(t, err)
	require.Equal(t, root, sess.Config[facade.ProjectRootKey])
}

// TestGenerateCodeChangesetAppliesCleanly exercises the returned Changeset end to end:
// the draft it yields writes the generated file once applied against the same project
// root recorded on the session.
func TestGenerateCodeChangesetAppliesCleanly(t *testing.T) {
	f, rt := newFacade(t)
	agent := agentrt.NewMockAgent("coder", task.KindCodeGeneration.Name)
	agent.ProcessFunc = func(_ context.Context, t task.Task) (task.Result, error) {
		return task.Result{TaskID: t.ID, AgentName: "coder", Success: true, Output: "package main\n"}, nil
	}
	require.NoError(t, rt.Register(agent))

	root := t.TempDir()
	sess, err := f.CreateSession(context.Background(), "proj", "alice", root)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, cs, err := f.GenerateCode(ctx, sess.ID, "a hello world program", "main.go", "go")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "main.go"))
	require.True(t, os.IsNotExist(err), "generating a draft must not touch disk before apply")

	engine := changeset.NewEngine(root, changeset.NewRegistry())
	require.NoError(t, engine.Apply(cs, true))

	content, err := os.ReadFile(filepath.Join(root, "main.go"))
	require.NoError(t, err)
	require.Equal(t, "package main\n", string(content))
}
