package changeset

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/infer-no-dev/devkit/internal/errkind"
)

// GateStatus is one QualityGate's outcome.
type GateStatus int8

const (
	// Passed indicates the gate found nothing to report.
	Passed GateStatus = iota
	// Failed indicates the gate found a blocking problem.
	Failed
	// Warning indicates a non-blocking finding.
	Warning
	// Skipped indicates the gate's host tool was unavailable.
	Skipped
	// GateError indicates the gate itself could not run to completion.
	GateError
)

// String implements fmt.Stringer.
func (s GateStatus) String() string {
	switch s {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Warning:
		return "warning"
	case Skipped:
		return "skipped"
	case GateError:
		return "error"
	default:
		return "unknown"
	}
}

// GateResult is one gate's reported outcome.
type GateResult struct {
	Details string
	Name string
	Status GateStatus
	Message string
	DurationMs int64
	IsBlocking bool
}

// ValidationResults aggregates every configured gate's outcome for one Changeset.
type ValidationResults struct {
	Gates []GateResult
	CanAutoApply bool
}

// QualityGate validates a Changeset against the project tree.
type QualityGate interface {
	Name() string
	IsBlocking() bool
	CanRunParallel() bool
	Validate(ctx context.Context, cs Changeset, projectRoot string) GateResult
}

// Registry holds an ordered, configured chain of gates.
type Registry struct {
	gates []QualityGate
}

// NewRegistry builds a Registry over the given gates, preserving order.
func NewRegistry(gates ...QualityGate) *Registry {
	return &Registry{gates: gates}
}

// Add appends a gate to the end of the chain.
func (r *Registry) Add(g QualityGate) {
	r.gates = append(r.gates, g)
}

// RunSequential runs every gate in order, stopping at the first blocking Failure.
func (r *Registry) RunSequential(ctx context.Context, cs Changeset, projectRoot string) ValidationResults {
	var results []GateResult
	for _, g := range r.gates {
		res := runOne(ctx, g, cs, projectRoot)
		results = append(results, res)
		if res.IsBlocking && (res.Status == Failed || res.Status == GateError) {
			break
		}
	}
	return ValidationResults{Gates: results, CanAutoApply: canAutoApply(results)}
}

// RunParallel runs every gate whose CanRunParallel is true concurrently, then runs the
// remaining gates sequentially in their configured order.
func (r *Registry) RunParallel(ctx context.Context, cs Changeset, projectRoot string) ValidationResults {
	var parallelGates, sequentialGates []QualityGate
	for _, g := range r.gates {
		if g.CanRunParallel() {
			parallelGates = append(parallelGates, g)
		} else {
			sequentialGates = append(sequentialGates, g)
		}
	}

	results := make([]GateResult, len(parallelGates))
	var g errgroup.Group
	for i, gate := range parallelGates {
		i, gate := i, gate
		g.Go(func() error {
			results[i] = runOne(ctx, gate, cs, projectRoot)
			return nil
		})
	}
	_ = g.Wait()

	for _, g := range sequentialGates {
		res := runOne(ctx, g, cs, projectRoot)
		results = append(results, res)
		if res.IsBlocking && (res.Status == Failed || res.Status == GateError) {
			break
		}
	}
	return ValidationResults{Gates: results, CanAutoApply: canAutoApply(results)}
}

func runOne(ctx context.Context, g QualityGate, cs Changeset, projectRoot string) GateResult {
	start := time.Now()
	res := g.Validate(ctx, cs, projectRoot)
	if res.Name == "" {
		res.Name = g.Name()
	}
	res.IsBlocking = g.IsBlocking()
	if res.DurationMs == 0 {
		res.DurationMs = time.Since(start).Milliseconds()
	}
	return res
}

// canAutoApply reports true iff no blocking gate is Failed or
// GateError.
func canAutoApply(results []GateResult) bool {
	for _, r := range results {
		if r.IsBlocking && (r.Status == Failed || r.Status == GateError) {
			return false
		}
	}
	return true
}

// runHostTool invokes an argv-style command (never a shell string) in projectRoot and
// captures combined output, avoiding shell injection entirely. A missing binary is
// reported distinctly so callers can turn it into Skipped rather than Failed.
func runHostTool(ctx context.Context, projectRoot string, argv ...string) (output string, exitCode int, toolMissing bool, err error) {
	if len(argv) == 0 {
		return "", -1, false, errkind.New(errkind.Config, "gate command is empty")
	}
	if _, lookErr := exec.LookPath(argv[0]); lookErr != nil {
		return "", -1, true, nil
	}

	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // argv-style, no shell interpolation
	cmd.Dir = projectRoot
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()
	code := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok { //nolint:errorlint // os/exec's own idiom
			code = exitErr.ExitCode()
		} else {
			return buf.String(), -1, false, errkind.Wrap(errkind.Validation, runErr, "gate command failed to run")
		}
	}
	return buf.String(), code, false, nil
}

// runShellCommand invokes a caller-supplied custom_commands shell string through the
// configured shell interpreter, unlike runHostTool's argv-only default gates.
func runShellCommand(ctx context.Context, projectRoot, shell, command string) (output string, exitCode int, err error) {
	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = projectRoot
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()
	code := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok { //nolint:errorlint // os/exec's own idiom
			code = exitErr.ExitCode()
		} else {
			return buf.String(), -1, errkind.Wrap(errkind.Validation, runErr, "custom gate command failed to run")
		}
	}
	return buf.String(), code, nil
}
