// Package facade implements the Integration Facade: it owns one instance each of the
// Provider Registry, Agent Runtime, Message Bus, and Session Store, constructs a Workflow
// Coordinator over the runtime, and builds a Changeset Engine per active session's project
// root, so one process can own one of each subsystem and glue them together behind a
// small request surface.
package facade

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/infer-no-dev/devkit/internal/agentrt"
	"github.com/infer-no-dev/devkit/internal/bus"
	"github.com/infer-no-dev/devkit/internal/changeset"
	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/logx"
	"github.com/infer-no-dev/devkit/internal/provider"
	"github.com/infer-no-dev/devkit/internal/session"
	"github.com/infer-no-dev/devkit/internal/task"
	"github.com/infer-no-dev/devkit/internal/workflow"
)

// ProjectRootKey is the session.Config key under which a session's working directory is
// recorded; Facade consults it when building that session's Changeset Engine.
const ProjectRootKey = "project_root"

// Facade is the top-level Integration Facade.
type Facade struct {
	Providers *provider.Registry
	Runtime *agentrt.Runtime
	Bus *bus.Bus
	Sessions *session.Store
	Workflows *workflow.Coordinator

	logger *logx.Logger

	mu sync.Mutex
	pending map[string]chan task.Result
	engines map[string]*changeset.Engine
}

// New wires a Facade over the given subsystems, starting a Workflow Coordinator on top of
// runtime without taking over the single completion slot single-task callers rely on (see
// fanoutDispatcher).
func New(providers *provider.Registry, runtime *agentrt.Runtime, msgBus *bus.Bus, sessions *session.Store) *Facade {
	dispatcher := newFanoutDispatcher(runtime)

	f := &Facade{
		Providers: providers,
		Runtime: runtime,
		Bus: msgBus,
		Sessions: sessions,
		Workflows: workflow.New(dispatcher),
		logger: logx.New("facade"),
		pending: make(map[string]chan task.Result),
		engines: make(map[string]*changeset.Engine),
	}
	dispatcher.SetOnComplete(f.onTaskComplete)
	return f
}

// CreateSession creates a new session and records projectRoot as its Changeset Engine
// root.
func (f *Facade) CreateSession(ctx context.Context, name, owner, projectRoot string) (session.Session, error) {
	sess := f.Sessions.Create(name, owner)
	if projectRoot == "" {
		return sess, nil
	}
	return f.Sessions.SetConfig(ctx, sess.ID, ProjectRootKey, projectRoot)
}

// SubmitTask wraps description as a Task carrying sessionID in its context, dispatches it
// through the Agent Runtime to the least-loaded capable agent, waits for completion, and
// records the outcome back onto the session: the dispatched agent's status and any
// artifacts the task produced.
func (f *Facade) SubmitTask(ctx context.Context, sessionID, description string, kind task.Kind, priority task.Priority) (task.Result, error) {
	if _, err := f.Sessions.Load(ctx, sessionID); err != nil {
		return task.Result{}, err
	}

	agentName, err := f.chooseAgent(kind.Name)
	if err != nil {
		return task.Result{}, err
	}

	t := task.New(description, kind, priority)
	t.Context["session_id"] = sessionID

	waiter := make(chan task.Result, 1)
	f.mu.Lock()
	f.pending[t.ID] = waiter
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.pending, t.ID)
		f.mu.Unlock()
	}()

	if _, err := f.Sessions.AddAgent(ctx, sessionID, agentName); err != nil {
		f.logger.Warn("failed to record agent %s on session %s: %v", agentName, sessionID, err)
	}

	if err := f.Runtime.Submit(agentName, t); err != nil {
		return task.Result{}, err
	}

	select {
	case result := <-waiter:
		f.recordResult(ctx, sessionID, agentName, result)
		return result, nil
	case <-ctx.Done():
		f.Runtime.Cancel(t.ID)
		return task.Result{}, errkind.Wrap(errkind.Cancelled, ctx.Err(), "submit_task cancelled")
	}
}

// GenerateCode issues a CodeGeneration task for prompt, waits for it to complete, wraps
// its output as a Draft source-code Artifact recorded on the session at targetPath, and
// returns both the artifact and a draft Changeset built from it via that session's
// Changeset Engine.
func (f *Facade) GenerateCode(ctx context.Context, sessionID, prompt, targetPath, language string) (task.Artifact, changeset.Changeset, error) {
	description := prompt
	if language != "" {
		description = fmt.Sprintf("Generate %s code: %s", language, prompt)
	}

	result, err := f.SubmitTask(ctx, sessionID, description, task.KindCodeGeneration, task.Normal)
	if err != nil {
		return task.Artifact{}, changeset.Changeset{}, err
	}
	if !result.Success {
		msg := "code generation failed"
		if result.Error != nil {
			msg = result.Error.Message
		}
		return task.Artifact{}, changeset.Changeset{}, errkind.New(errkind.Validation, msg)
	}

	artifact := task.Artifact{
		ID: uuid.NewString(),
		Kind: "source_code",
		Content: result.Output,
		Status: "draft",
		Version: 1,
		Metadata: map[string]string{
			"path": targetPath,
			"language": language,
		},
	}
	if _, err := f.Sessions.AddArtifact(ctx, sessionID, artifact); err != nil {
		f.logger.Warn("failed to record generated artifact on session %s: %v", sessionID, err)
	}

	sess, err := f.Sessions.Load(ctx, sessionID)
	if err != nil {
		return artifact, changeset.Changeset{}, err
	}

	engine := f.engineFor(sess)
	cs, err := engine.BuildFromResult(task.Result{Artifacts: []task.Artifact{artifact}}, "generated code", prompt)
	if err != nil {
		return artifact, changeset.Changeset{}, err
	}
	return artifact, cs, nil
}

// SubmitWorkflow dispatches wf through the Workflow Coordinator.
func (f *Facade) SubmitWorkflow(wf workflow.Workflow) error {
	return f.Workflows.Submit(wf)
}

// onTaskComplete routes one completed task.Result back to the waiting SubmitTask call, if
// any is still registered. Results belonging to a workflow-owned task never reach here
// with a registered waiter, since workflow submissions don't go through SubmitTask.
func (f *Facade) onTaskComplete(result task.Result) {
	f.mu.Lock()
	waiter, ok := f.pending[result.TaskID]
	f.mu.Unlock()
	if !ok {
		return
	}
	select {
	case waiter <- result:
	default:
	}
}

func (f *Facade) recordResult(ctx context.Context, sessionID, agentName string, result task.Result) {
	status := "idle"
	if !result.Success {
		status = "error"
	}
	if _, err := f.Sessions.UpdateAgentStatus(ctx, sessionID, agentName, status); err != nil {
		f.logger.Warn("failed to update agent status on session %s: %v", sessionID, err)
	}
	for _, artifact := range result.Artifacts {
		if _, err := f.Sessions.AddArtifact(ctx, sessionID, artifact); err != nil {
			f.logger.Warn("failed to record artifact on session %s: %v", sessionID, err)
		}
	}
}

// chooseAgent mirrors the Workflow Coordinator's tie-break rule.
func (f *Facade) chooseAgent(capability string) (string, error) {
	names := f.Runtime.CapableAgents(capability)
	if len(names) == 0 {
		return "", errkind.New(errkind.NotFound, "no capable agent for "+capability)
	}
	best := names[0]
	bestDepth, err := f.Runtime.QueueDepth(best)
	if err != nil {
		bestDepth = 0
	}
	for _, name := range names[1:] {
		depth, err := f.Runtime.QueueDepth(name)
		if err != nil {
			continue
		}
		if depth < bestDepth {
			best, bestDepth = name, depth
		}
	}
	return best, nil
}

// engineFor returns the cached Changeset Engine for sess's project root, building one
// with the default gate chain (format, lint, compile, test) on first use.
func (f *Facade) engineFor(sess session.Session) *changeset.Engine {
	root := sess.Config[ProjectRootKey]
	if root == "" {
		root = "."
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.engines[root]; ok {
		return e
	}
	registry := changeset.NewRegistry(
		changeset.NewFormatGate(),
		changeset.NewLintGate(),
		changeset.NewCompileGate(),
		changeset.NewTestGate(),
	)
	e := changeset.NewEngine(root, registry)
	f.engines[root] = e
	return e
}
