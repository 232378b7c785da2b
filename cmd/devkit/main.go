// Command devkit wires the provider registry, agent runtime, message bus, session store,
// and integration facade into a single running process: build the default configuration,
// register the configured providers, then block until a termination signal arrives. No
// agents are registered here.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/infer-no-dev/devkit/internal/agentrt"
	"github.com/infer-no-dev/devkit/internal/bus"
	"github.com/infer-no-dev/devkit/internal/config"
	"github.com/infer-no-dev/devkit/internal/facade"
	"github.com/infer-no-dev/devkit/internal/logx"
	"github.com/infer-no-dev/devkit/internal/provider"
	"github.com/infer-no-dev/devkit/internal/provider/anthropicprovider"
	"github.com/infer-no-dev/devkit/internal/provider/geminiprovider"
	"github.com/infer-no-dev/devkit/internal/provider/ollamaprovider"
	"github.com/infer-no-dev/devkit/internal/provider/openaiprovider"
	"github.com/infer-no-dev/devkit/internal/session"
	"github.com/infer-no-dev/devkit/internal/session/sqlitestore"
)

func main() {
	var projectDir string
	var dbPath string
	flag.StringVar(&projectDir, "projectdir", "", "Project directory used as the default Changeset Engine root")
	flag.StringVar(&dbPath, "db", "", "Path to the session store's SQLite database (default: <projectdir>/.devkit/sessions.db)")
	flag.Parse()

	if projectDir == "" {
		log.Fatal("project directory must be specified with -projectdir")
	}
	if dbPath == "" {
		dbPath = filepath.Join(projectDir, ".devkit", "sessions.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("failed to create session store directory: %v", err)
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logx.New("main")

	registry := provider.New(string(cfg.AI.DefaultProvider))
	registerProviders(registry, cfg)

	backend, err := sqlitestore.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer backend.Close()

	store := session.NewStore(backend,
		session.WithMaxActiveSessions(cfg.Session.MaxActiveSessions),
	)
	defer store.Close()

	runtime := agentrt.New(cfg.Agents.MaxConcurrentAgents)
	defer runtime.Stop()

	messageBus := bus.New(0)

	f := facade.New(registry, runtime, messageBus, store)
	_ = f // wired and ready to accept submit_task/generate_code requests from a future front end

	logger.Info("devkit core started, project root %s", projectDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal %v, shutting down", sig)
}

// registerProviders registers a client for every configured provider, whether or not its
// credentials are set; a provider name it does not recognise is reported on stderr and
// skipped.
func registerProviders(registry *provider.Registry, cfg config.Config) {
	for name, pc := range cfg.AI.Providers {
		switch name {
		case config.ProviderAnthropic:
			registry.Register(anthropicprovider.New(pc.APIKey, pc.DefaultModel))
		case config.ProviderOpenAI:
			registry.Register(openaiprovider.New(pc.APIKey, pc.Endpoint, pc.DefaultModel))
		case config.ProviderGoogle:
			registry.Register(geminiprovider.New(pc.APIKey, pc.DefaultModel))
		case config.ProviderOllama:
			endpoint := pc.Endpoint
			if endpoint == "" {
				endpoint = "http://localhost:11434"
			}
			registry.Register(ollamaprovider.New(endpoint, pc.DefaultModel))
		default:
			fmt.Fprintf(os.Stderr, "unknown provider %q in configuration, skipping\n", name)
		}
	}
}
