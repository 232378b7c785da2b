package task_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/task"
)

func TestNewGeneratesID(t *testing.T) {
	tk := task.New("do a thing", task.KindAnalysis, task.Normal)
	require.NotEmpty(t, tk.ID)
	require.Equal(t, "analysis", tk.Kind.String())
}

func TestKindCustomRoundTrips(t *testing.T) {
	k := task.KindCustom("refactor")
	require.Equal(t, "custom<refactor>", k.String())
}

func TestPriorityOrdering(t *testing.T) {
	require.Less(t, int(task.Low), int(task.Normal))
	require.Less(t, int(task.Normal), int(task.High))
	require.Less(t, int(task.High), int(task.Critical))
}
