package config

import "time"

// Config is the top-level structure parsed from codepilot.yaml. Every
// section has a working default, so an empty file (or no file at all)
// yields a runnable mock-mode setup.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Memory   MemoryConfig   `yaml:"memory"`
	DB       DBConfig       `yaml:"db"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LLMConfig selects the producer backend. StageModels overrides the model
// per stage name for providers that support it.
type LLMConfig struct {
	Provider    string            `yaml:"provider"`
	Model       string            `yaml:"model"`
	BaseURL     string            `yaml:"base_url"`
	APIKeyEnv   string            `yaml:"api_key_env"`
	StageModels map[string]string `yaml:"stage_models"`
}

// PipelineConfig bounds the orchestration loop.
type PipelineConfig struct {
	MaxDebugIterations int `yaml:"max_debug_iterations"`
	ProducerRetries    int `yaml:"producer_retries"`
}

// SandboxConfig bounds candidate-code execution.
type SandboxConfig struct {
	TimeoutSeconds float64  `yaml:"timeout_seconds"`
	MemoryLimitMB  int      `yaml:"memory_limit_mb"`
	Parallelism    int      `yaml:"parallelism"`
	AllowedImports []string `yaml:"allowed_imports"`
}

// Timeout returns the per-case wall clock budget as a duration.
func (c SandboxConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// MemoryConfig selects the preference-store backend.
type MemoryConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// DBConfig locates the run event log. An empty path means the default
// under ~/.codepilot.
type DBConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when a key (or the whole file)
// is absent.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		LLM:    LLMConfig{Provider: "mock"},
		Pipeline: PipelineConfig{
			MaxDebugIterations: 2,
			ProducerRetries:    2,
		},
		Sandbox: SandboxConfig{
			TimeoutSeconds: 2.0,
			MemoryLimitMB:  256,
			Parallelism:    1,
		},
		Memory: MemoryConfig{Driver: "sqlite"},
	}
}
