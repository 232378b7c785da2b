package changeset

import (
	"context"
	"strings"
)

// FormatGate checks gofmt compliance of every Go file touched by the changeset. It is
// non-blocking: a diff from canonical formatting is a Warning, not Failed.
type FormatGate struct{}

// NewFormatGate builds the default format gate.
func NewFormatGate() FormatGate { return FormatGate{} }

func (FormatGate) Name() string { return "format" }
func (FormatGate) IsBlocking() bool { return false }
func (FormatGate) CanRunParallel() bool { return true }

// Validate runs `gofmt -l` over the changeset's Go files and reports any that would be
// reformatted.
func (g FormatGate) Validate(ctx context.Context, cs Changeset, projectRoot string) GateResult {
	goFiles := goFilePaths(cs)
	if len(goFiles) == 0 {
		return GateResult{Status: Passed, Message: "no Go files in changeset"}
	}
	argv := append([]string{"gofmt", "-l"}, goFiles...)
	out, code, missing, err := runHostTool(ctx, projectRoot, argv...)
	if missing {
		return GateResult{Status: Skipped, Message: "gofmt not found on host"}
	}
	if err != nil {
		return GateResult{Status: GateError, Message: err.Error()}
	}
	if code != 0 {
		return GateResult{Status: GateError, Message: "gofmt exited non-zero", Details: out}
	}
	if strings.TrimSpace(out) != "" {
		return GateResult{Status: Warning, Message: "files are not gofmt-formatted", Details: out}
	}
	return GateResult{Status: Passed, Message: "all files formatted"}
}

// LintGate runs `go vet` over the project, blocking on any reported problem.
type LintGate struct{}

// NewLintGate builds the default lint gate.
func NewLintGate() LintGate { return LintGate{} }

func (LintGate) Name() string { return "lint" }
func (LintGate) IsBlocking() bool { return true }
func (LintGate) CanRunParallel() bool { return false }

func (g LintGate) Validate(ctx context.Context, _ Changeset, projectRoot string) GateResult {
	out, code, missing, err := runHostTool(ctx, projectRoot, "go", "vet", "./...")
	if missing {
		return GateResult{Status: Skipped, Message: "go toolchain not found on host"}
	}
	if err != nil {
		return GateResult{Status: GateError, Message: err.Error()}
	}
	if code != 0 {
		return GateResult{Status: Failed, Message: "go vet reported problems", Details: out}
	}
	return GateResult{Status: Passed, Message: "go vet clean"}
}

// CompileGate runs `go build ./...`, blocking on any compile error.
type CompileGate struct{}

// NewCompileGate builds the default compile gate.
func NewCompileGate() CompileGate { return CompileGate{} }

func (CompileGate) Name() string { return "compile" }
func (CompileGate) IsBlocking() bool { return true }
func (CompileGate) CanRunParallel() bool { return false }

func (g CompileGate) Validate(ctx context.Context, _ Changeset, projectRoot string) GateResult {
	out, code, missing, err := runHostTool(ctx, projectRoot, "go", "build", "./...")
	if missing {
		return GateResult{Status: Skipped, Message: "go toolchain not found on host"}
	}
	if err != nil {
		return GateResult{Status: GateError, Message: err.Error()}
	}
	if code != 0 {
		return GateResult{Status: Failed, Message: "build failed", Details: out}
	}
	return GateResult{Status: Passed, Message: "build succeeded"}
}

// TestGate runs `go test ./...`, blocking on any test failure.
type TestGate struct{}

// NewTestGate builds the default test gate.
func NewTestGate() TestGate { return TestGate{} }

func (TestGate) Name() string { return "test" }
func (TestGate) IsBlocking() bool { return true }
func (TestGate) CanRunParallel() bool { return false }

func (g TestGate) Validate(ctx context.Context, _ Changeset, projectRoot string) GateResult {
	out, code, missing, err := runHostTool(ctx, projectRoot, "go", "test", "./...")
	if missing {
		return GateResult{Status: Skipped, Message: "go toolchain not found on host"}
	}
	if err != nil {
		return GateResult{Status: GateError, Message: err.Error()}
	}
	if code != 0 {
		return GateResult{Status: Failed, Message: "tests failed", Details: out}
	}
	return GateResult{Status: Passed, Message: "tests passed"}
}

// SecurityGate runs `govulncheck`, surfacing findings as a Warning; a scanner-side error
// (not a finding, but a failure to scan at all) is Failed rather than Skipped.
type SecurityGate struct{}

// NewSecurityGate builds the default security gate.
func NewSecurityGate() SecurityGate { return SecurityGate{} }

func (SecurityGate) Name() string { return "security" }
func (SecurityGate) IsBlocking() bool { return true }
func (SecurityGate) CanRunParallel() bool { return true }

func (g SecurityGate) Validate(ctx context.Context, _ Changeset, projectRoot string) GateResult {
	out, code, missing, err := runHostTool(ctx, projectRoot, "govulncheck", "./...")
	if missing {
		return GateResult{Status: Skipped, Message: "govulncheck not found on host"}
	}
	if err != nil {
		return GateResult{Status: Failed, Message: "vulnerability scan could not complete", Details: err.Error()}
	}
	if code != 0 {
		return GateResult{Status: Warning, Message: "govulncheck reported findings", Details: out}
	}
	return GateResult{Status: Passed, Message: "no known vulnerabilities"}
}

// CustomGate runs a caller-supplied shell command; exit code 0 is Passed, any non-zero
// exit is Failed with the captured output as Details.
type CustomGate struct {
	name string
	shell string
	command string
	blocking bool
}

// NewCustomGate builds a blocking custom gate named name, running command through shell
// (e.g. "/bin/sh").
func NewCustomGate(name, shell, command string) CustomGate {
	return CustomGate{name: name, shell: shell, command: command, blocking: true}
}

func (c CustomGate) Name() string { return c.name }
func (c CustomGate) IsBlocking() bool { return c.blocking }
func (c CustomGate) CanRunParallel() bool { return false }

func (c CustomGate) Validate(ctx context.Context, _ Changeset, projectRoot string) GateResult {
	out, code, err := runShellCommand(ctx, projectRoot, c.shell, c.command)
	if err != nil {
		return GateResult{Status: GateError, Message: err.Error()}
	}
	if code != 0 {
		return GateResult{Status: Failed, Message: "custom command exited non-zero", Details: out}
	}
	return GateResult{Status: Passed, Message: "custom command succeeded"}
}

func goFilePaths(cs Changeset) []string {
	var out []string
	for _, f := range cs.Files {
		if f.ChangeType == Delete {
			continue
		}
		if strings.HasSuffix(f.Path, ".go") {
			out = append(out, f.Path)
		}
	}
	return out
}
