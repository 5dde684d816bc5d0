package config

import "fmt"

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// recognizedProviders is the set of valid llm.provider values.
var recognizedProviders = map[string]bool{
	"mock":   true,
	"openai": true,
	"gemini": true,
}

// recognizedStageModels is the set of stage names that may carry a model
// override. The load-context stage never calls the producer, so it is
// deliberately absent.
var recognizedStageModels = map[string]bool{
	"classify-intent": true,
	"plan":            true,
	"generate-code":   true,
	"test":            true,
	"debug":           true,
}

// recognizedMemoryDrivers is the set of valid memory.driver values.
var recognizedMemoryDrivers = map[string]bool{
	"sqlite":   true,
	"postgres": true,
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Server.Port),
		})
	}

	if cfg.LLM.Provider == "" {
		errs = append(errs, ValidationError{Field: "llm.provider", Message: "is required"})
	} else if !recognizedProviders[cfg.LLM.Provider] {
		errs = append(errs, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unrecognized provider %q", cfg.LLM.Provider),
		})
	}

	for stage := range cfg.LLM.StageModels {
		if !recognizedStageModels[stage] {
			errs = append(errs, ValidationError{
				Field:   "llm.stage_models",
				Message: fmt.Sprintf("references unknown stage %q", stage),
			})
		}
	}

	if cfg.Pipeline.MaxDebugIterations < 0 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.max_debug_iterations",
			Message: "must not be negative",
		})
	}
	if cfg.Pipeline.ProducerRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.producer_retries",
			Message: "must not be negative",
		})
	}

	if cfg.Sandbox.TimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "sandbox.timeout_seconds",
			Message: "must be positive",
		})
	}
	if cfg.Sandbox.MemoryLimitMB <= 0 {
		errs = append(errs, ValidationError{
			Field:   "sandbox.memory_limit_mb",
			Message: "must be positive",
		})
	}
	if cfg.Sandbox.Parallelism < 1 {
		errs = append(errs, ValidationError{
			Field:   "sandbox.parallelism",
			Message: "must be at least 1",
		})
	}

	if cfg.Memory.Driver == "" {
		errs = append(errs, ValidationError{Field: "memory.driver", Message: "is required"})
	} else if !recognizedMemoryDrivers[cfg.Memory.Driver] {
		errs = append(errs, ValidationError{
			Field:   "memory.driver",
			Message: fmt.Sprintf("unrecognized driver %q", cfg.Memory.Driver),
		})
	}
	if cfg.Memory.Driver == "postgres" && cfg.Memory.DSN == "" {
		errs = append(errs, ValidationError{
			Field:   "memory.dsn",
			Message: "is required for the postgres driver",
		})
	}

	return errs
}
