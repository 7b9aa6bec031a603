// Package config provides configuration management for the orchestration
// runtime, including agent team topology and per-tier LLM provider
// configuration.
package config

import (
	"fmt"
	"sync"
)

// AgentConfig declares one role-bound agent within the team: its prompt,
// the tool subset it may call, and the LLM tier it runs on. Instantiation
// into a models.AgentDefinition happens in BuildTeam.
type AgentConfig struct {
	// Human-readable description of the agent's role, used in the
	// coordinator's handoff tool description.
	Description string `yaml:"description,omitempty"`

	// Tools this agent may call — a subset of the tool registry's names.
	Tools []string `yaml:"tools,omitempty"`

	// System prompt / instructions for this agent.
	SystemPrompt string `yaml:"system_prompt"`

	// LLM tier this agent calls through: "simple", "medium", or "complex".
	LLMHandle string `yaml:"llm_handle" validate:"required"`

	// MaxIterations is read from team.yaml but not carried into the
	// AgentDefinition; the engine's per-agent cap is
	// engine.Config.MaxIterationsPerAgent.
	MaxIterations *int `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`
}

// AgentRegistry stores agent configurations (the specialists plus the
// coordinator, keyed "coordinator") in memory with thread-safe access.
type AgentRegistry struct {
	agents map[string]*AgentConfig
	mu     sync.RWMutex
}

// NewAgentRegistry creates a new agent registry.
func NewAgentRegistry(agents map[string]*AgentConfig) *AgentRegistry {
	copied := make(map[string]*AgentConfig, len(agents))
	for k, v := range agents {
		copied[k] = v
	}
	return &AgentRegistry{agents: copied}
}

// Get retrieves an agent configuration by name (thread-safe).
func (r *AgentRegistry) Get(name string) (*AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return agent, nil
}

// GetAll returns all agent configurations (thread-safe, returns copy).
func (r *AgentRegistry) GetAll() map[string]*AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*AgentConfig, len(r.agents))
	for k, v := range r.agents {
		result[k] = v
	}
	return result
}

// Has checks if an agent exists in the registry (thread-safe).
func (r *AgentRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.agents[name]
	return exists
}

// Len returns the number of agents in the registry (thread-safe).
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
