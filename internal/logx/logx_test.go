package logx_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/logx"
)

func TestNamedReturnsChildLogger(t *testing.T) {
	base := logx.New("provider")
	child := base.Named("ollama")
	require.NotNil(t, child)
}

func TestSetLevelDoesNotPanic(t *testing.T) {
	logx.SetLevel(logx.LevelError)
	l := logx.New("test")
	l.Debug("suppressed")
	l.Info("suppressed")
	l.Warn("suppressed")
	l.Error("shown")
	logx.SetLevel(logx.LevelInfo)
}
