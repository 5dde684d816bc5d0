package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/agents"
	"github.com/lucasnoah/codepilot/internal/config"
	"github.com/lucasnoah/codepilot/internal/db"
	"github.com/lucasnoah/codepilot/internal/llm"
	"github.com/lucasnoah/codepilot/internal/memory"
	"github.com/lucasnoah/codepilot/internal/orchestrator"
	"github.com/lucasnoah/codepilot/internal/pipeline"
	"github.com/lucasnoah/codepilot/internal/sandbox"
	"github.com/lucasnoah/codepilot/internal/solver"
)

// newLogger builds the process logger. The default is quiet: only warnings
// and errors, so pipeline progress stays readable on the terminal.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// openDB opens and migrates the run database, returning it with a cleanup
// func.
func openDB(cfg *config.Config) (*db.DB, func(), error) {
	path := cfg.DB.Path
	if path == "" {
		p, err := db.DefaultDBPath()
		if err != nil {
			return nil, nil, err
		}
		path = p
	}
	d, err := db.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, nil, err
	}
	return d, func() { d.Close() }, nil
}

// openMemory opens the preference store named by the config.
func openMemory(ctx context.Context, cfg *config.Config) (memory.Store, func(), error) {
	switch cfg.Memory.Driver {
	case "postgres":
		st, err := memory.OpenPostgres(ctx, cfg.Memory.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres memory store: %w", err)
		}
		return st, func() { st.Close() }, nil
	default:
		path := cfg.Memory.Path
		if path == "" {
			p, err := memory.DefaultSQLitePath()
			if err != nil {
				return nil, nil, err
			}
			path = p
		}
		st, err := memory.OpenSQLite(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite memory store: %w", err)
		}
		return st, func() { st.Close() }, nil
	}
}

func llmOptions(cfg *config.Config, model string) llm.Options {
	if model == "" {
		model = cfg.LLM.Model
	}
	return llm.Options{
		Provider:  cfg.LLM.Provider,
		Model:     model,
		BaseURL:   cfg.LLM.BaseURL,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
	}
}

// buildEngine assembles the six stages behind an orchestration engine.
// Stages with a model override in llm.stage_models get their own client;
// the rest share the base one.
func buildEngine(ctx context.Context, cfg *config.Config, mem memory.Store, log *zap.Logger) (*orchestrator.Engine, error) {
	base, err := llm.New(ctx, llmOptions(cfg, ""))
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	overrides := make(map[string]llm.Client, len(cfg.LLM.StageModels))
	for stage, model := range cfg.LLM.StageModels {
		c, err := llm.New(ctx, llmOptions(cfg, model))
		if err != nil {
			return nil, fmt.Errorf("llm client for stage %s: %w", stage, err)
		}
		overrides[stage] = c
	}
	stageClient := func(stage string) llm.Client {
		if c, ok := overrides[stage]; ok {
			return c
		}
		return base
	}

	exec := sandbox.NewExecutor(log)
	exec.Timeout = cfg.Sandbox.Timeout()
	exec.MemoryLimitMB = cfg.Sandbox.MemoryLimitMB
	exec.Parallelism = cfg.Sandbox.Parallelism
	exec.AllowedImports = cfg.Sandbox.AllowedImports

	retries := cfg.Pipeline.ProducerRetries
	stages := orchestrator.Stages{
		LoadContext:    &agents.ContextLoader{Store: mem, Log: log},
		ClassifyIntent: &agents.IntentClassifier{Client: stageClient(pipeline.StageClassifyIntent), Retries: retries, Log: log},
		Plan:           &agents.Planner{Client: stageClient(pipeline.StagePlan), Retries: retries, Log: log},
		GenerateCode:   &agents.CodeGenerator{Client: stageClient(pipeline.StageGenerateCode), Retries: retries, Log: log},
		Test:           &agents.Tester{Client: stageClient(pipeline.StageTest), Runner: exec, Retries: retries, Log: log},
		Debug:          &agents.Debugger{Client: stageClient(pipeline.StageDebug), Retries: retries, Log: log},
	}

	eng := orchestrator.NewEngine(stages, log)
	eng.SetMaxDebugIterations(cfg.Pipeline.MaxDebugIterations)
	return eng, nil
}

// buildSolver wires the full stack: engine, run database, artifact store,
// and preference memory. progress may be nil for silent operation.
func buildSolver(ctx context.Context, cfg *config.Config, progress io.Writer, log *zap.Logger) (*solver.Solver, *db.DB, *pipeline.Store, func(), error) {
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, nil, nil, nil, fmt.Errorf("invalid config: %s", errs[0])
	}

	database, cleanupDB, err := openDB(cfg)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open db: %w", err)
	}

	store, err := pipeline.DefaultStore()
	if err != nil {
		cleanupDB()
		return nil, nil, nil, nil, fmt.Errorf("artifact store: %w", err)
	}

	mem, cleanupMem, err := openMemory(ctx, cfg)
	if err != nil {
		cleanupDB()
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		cleanupMem()
		cleanupDB()
	}

	engine, err := buildEngine(ctx, cfg, mem, log)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}
	if progress != nil {
		engine.SetProgress(progress)
	}

	return solver.New(engine, database, store, mem, log), database, store, cleanup, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
