package errkind_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/errkind"
)

func TestErrorMessageHasNoStackTrace(t *testing.T) {
	err := errkind.Wrap(errkind.Network, fmt.Errorf("dial tcp: refused"), "chat failed")
	require.Contains(t, err.Error(), "network")
	require.Contains(t, err.Error(), "chat failed")
	require.Contains(t, err.Error(), "dial tcp: refused")
}

func TestIsComparesKindOnly(t *testing.T) {
	err := errkind.New(errkind.NotFound, "session abc not found")
	require.True(t, errors.Is(err, errkind.New(errkind.NotFound, "")))
	require.False(t, errors.Is(err, errkind.New(errkind.Duplicate, "")))
}

func TestKindOfUnwrapsPlainErrors(t *testing.T) {
	inner := errkind.New(errkind.Timeout, "gate exceeded deadline")
	wrapped := fmt.Errorf("apply: %w", inner)

	kind, ok := errkind.KindOf(wrapped)
	require.True(t, ok)
	require.Equal(t, errkind.Timeout, kind)

	_, ok = errkind.KindOf(errors.New("plain"))
	require.False(t, ok)
}
