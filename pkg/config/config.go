package config

// Config is the umbrella configuration object: the agent team topology,
// per-tier LLM providers, and system-wide defaults/retention. This is the
// primary object returned by Initialize and used throughout the runtime.
type Config struct {
	configDir string

	Defaults            *Defaults
	Retention           *RetentionConfig
	AgentRegistry       *AgentRegistry
	LLMProviderRegistry *LLMProviderRegistry

	// Team is the coordinator + specialist topology as declared in
	// team.yaml. Call BuildTeam to turn it into the engine.Team the
	// dispatcher routes complex turns through.
	Team TeamConfig
}

// ConfigStats contains statistics about loaded configuration.
type ConfigStats struct {
	Agents       int
	LLMProviders int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		Agents:       c.AgentRegistry.Len(),
		LLMProviders: c.LLMProviderRegistry.Len(),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetAgent retrieves an agent configuration by name ("coordinator" or a
// specialist name).
func (c *Config) GetAgent(name string) (*AgentConfig, error) {
	return c.AgentRegistry.Get(name)
}

// GetLLMProvider retrieves an LLM provider configuration by tier name.
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}
