package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// TeamYAMLConfig represents the complete team.yaml file structure: the agent
// team topology plus system-wide defaults and retention policy.
type TeamYAMLConfig struct {
	Coordinator AgentConfig             `yaml:"coordinator"`
	Specialists map[string]*AgentConfig `yaml:"specialists"`
	Defaults    *Defaults               `yaml:"defaults"`
	Retention   *RetentionConfig        `yaml:"retention"`
}

// LLMProvidersYAMLConfig represents the complete llm-providers.yaml file
// structure: one entry per tier ("simple", "medium", "complex").
type LLMProvidersYAMLConfig struct {
	LLMProviders map[string]*LLMProviderConfig `yaml:"llm_providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load team.yaml and llm-providers.yaml from configDir
//  2. Expand environment variables
//  3. Build the agent registry and the coordinator/specialist team
//  4. Apply defaults and retention fallbacks
//  5. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"agents", stats.Agents,
		"llm_providers", stats.LLMProviders)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	teamYAML, err := loader.loadTeamYAML()
	if err != nil {
		return nil, NewLoadError("team.yaml", err)
	}

	llmProviders, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	teamCfg := TeamConfig{
		Coordinator: teamYAML.Coordinator,
		Specialists: teamYAML.Specialists,
	}
	if _, err := BuildTeam(teamCfg); err != nil {
		return nil, fmt.Errorf("failed to build agent team: %w", err)
	}

	agents := make(map[string]*AgentConfig, len(teamYAML.Specialists)+1)
	for name, agent := range teamYAML.Specialists {
		agents[name] = agent
	}
	agents["coordinator"] = &teamYAML.Coordinator
	agentRegistry := NewAgentRegistry(agents)

	llmProviderRegistry := NewLLMProviderRegistry(llmProviders)

	defaults := teamYAML.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	if defaults.LLMProvider == "" {
		defaults.LLMProvider = "simple"
	}

	retention := teamYAML.Retention
	if retention == nil {
		retention = DefaultRetentionConfig()
	}

	return &Config{
		configDir:           configDir,
		Defaults:            defaults,
		Retention:           retention,
		AgentRegistry:       agentRegistry,
		LLMProviderRegistry: llmProviderRegistry,
		Team:                teamCfg,
	}, nil
}

// validateConfig performs the small set of cross-field checks that struct
// tags alone can't express: that every agent's llm_handle resolves to a
// declared LLM provider tier.
func validateConfig(cfg *Config) error {
	for name, agent := range cfg.AgentRegistry.GetAll() {
		if agent.LLMHandle == "" {
			return NewValidationError("agent", name, "llm_handle", ErrMissingRequiredField)
		}
		if !cfg.LLMProviderRegistry.Has(agent.LLMHandle) {
			return NewValidationError("agent", name, "llm_handle", fmt.Errorf("%w: %s", ErrLLMProviderNotFound, agent.LLMHandle))
		}
	}
	for name, provider := range cfg.LLMProviderRegistry.GetAll() {
		if !provider.Type.IsValid() {
			return NewValidationError("llm_provider", name, "type", ErrInvalidYAML)
		}
	}
	return nil
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

func (l *configLoader) loadTeamYAML() (*TeamYAMLConfig, error) {
	var cfg TeamYAMLConfig
	cfg.Specialists = make(map[string]*AgentConfig)

	if err := l.loadYAML("team.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *configLoader) loadLLMProvidersYAML() (map[string]*LLMProviderConfig, error) {
	var cfg LLMProvidersYAMLConfig
	cfg.LLMProviders = make(map[string]*LLMProviderConfig)

	if err := l.loadYAML("llm-providers.yaml", &cfg); err != nil {
		return nil, err
	}
	return cfg.LLMProviders, nil
}
