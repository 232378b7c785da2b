package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/agentrt"
	"github.com/infer-no-dev/devkit/internal/task"
	"github.com/infer-no-dev/devkit/internal/workflow"
)

// TestDAGWorkflowScenario runs T1→T3, T2→T3 on two agents and checks that the workflow
// finishes Completed; the start order of the three tasks is not asserted.
func TestDAGWorkflowScenario(t *testing.T) {
	rt := agentrt.New(2)
	require.NoError(t, rt.Register(agentrt.NewMockAgent("agent-1", "work")))
	require.NoError(t, rt.Register(agentrt.NewMockAgent("agent-2", "work")))

	coord := workflow.New(rt)

	t1 := task.New("t1", task.Kind{Name: "work"}, task.Normal)
	t1.ID = "T1"
	t2 := task.New("t2", task.Kind{Name: "work"}, task.Normal)
	t2.ID = "T2"
	t3 := task.New("t3", task.Kind{Name: "work"}, task.Normal)
	t3.ID = "T3"

	wf := workflow.Workflow{
		ID: "wf-1",
		Description: "diamond-lite",
		Tasks: []workflow.WorkflowTask{
			{Task: t1},
			{Task: t2},
			{Task: t3, Deps: []string{"T1", "T2"}},
		},
	}
	require.NoError(t, coord.Submit(wf))

	done, err := coord.Done("wf-1")
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workflow did not complete")
	}

	status, err := coord.Status("wf-1")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCompleted, status)
}

func TestSubmitRejectsDuplicateTaskID(t *testing.T) {
	rt := agentrt.New(1)
	coord := workflow.New(rt)

	dup := task.New("x", task.Kind{Name: "work"}, task.Normal)
	dup.ID = "same"
	dup2 := task.New("y", task.Kind{Name: "work"}, task.Normal)
	dup2.ID = "same"

	err := coord.Submit(workflow.Workflow{
		ID: "dup-wf",
		Tasks: []workflow.WorkflowTask{{Task: dup}, {Task: dup2}},
	})
	require.Error(t, err)
}

func TestSubmitRejectsMissingDependency(t *testing.T) {
	rt := agentrt.New(1)
	coord := workflow.New(rt)

	t1 := task.New("x", task.Kind{Name: "work"}, task.Normal)
	t1.ID = "T1"

	err := coord.Submit(workflow.Workflow{
		ID: "missing-dep-wf",
		Tasks: []workflow.WorkflowTask{{Task: t1, Deps: []string{"ghost"}}},
	})
	require.Error(t, err)
}

func TestSubmitRejectsCycle(t *testing.T) {
	rt := agentrt.New(1)
	coord := workflow.New(rt)

	a := task.New("a", task.Kind{Name: "work"}, task.Normal)
	a.ID = "A"
	b := task.New("b", task.Kind{Name: "work"}, task.Normal)
	b.ID = "B"

	err := coord.Submit(workflow.Workflow{
		ID: "cycle-wf",
		Tasks: []workflow.WorkflowTask{
			{Task: a, Deps: []string{"B"}},
			{Task: b, Deps: []string{"A"}},
		},
	})
	require.Error(t, err)
}

// TestFailureMarksWorkflowFailedWithFirstFailingTask checks that when T1 fails, the
// workflow still finishes (its dependent T2 does not hold it open), ends Failed, and
// reports T1 as the first failing task.
func TestFailureMarksWorkflowFailedWithFirstFailingTask(t *testing.T) {
	rt := agentrt.New(2)
	failing := agentrt.NewMockAgent("failing", "work")
	failing.ProcessFunc = func(_ context.Context, tk task.Task) (task.Result, error) {
		return task.Result{TaskID: tk.ID, Success: false}, nil
	}
	require.NoError(t, rt.Register(failing))
	require.NoError(t, rt.Register(agentrt.NewMockAgent("ok", "work")))

	coord := workflow.New(rt)

	t1 := task.New("fails", task.Kind{Name: "work"}, task.Normal)
	t1.ID = "T1"
	t2 := task.New("depends", task.Kind{Name: "work"}, task.Normal)
	t2.ID = "T2"

	require.NoError(t, coord.Submit(workflow.Workflow{
		ID: "fail-wf",
		Tasks: []workflow.WorkflowTask{{Task: t1}, {Task: t2, Deps: []string{"T1"}}},
	}))

	done, err := coord.Done("fail-wf")
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workflow did not finish")
	}

	status, err := coord.Status("fail-wf")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusFailed, status)

	first, err := coord.FirstFailure("fail-wf")
	require.NoError(t, err)
	require.Equal(t, "T1", first)
}
