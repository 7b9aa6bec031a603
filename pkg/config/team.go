package config

import (
	"fmt"
	"sort"

	"github.com/dataloom/analystrt/pkg/engine"
	"github.com/dataloom/analystrt/pkg/models"
)

// TeamConfig declares the full agent team topology: one coordinator and its
// closed set of specialists.
type TeamConfig struct {
	Coordinator AgentConfig            `yaml:"coordinator"`
	Specialists map[string]*AgentConfig `yaml:"specialists"`
}

// BuildTeam turns a TeamConfig into the engine.Team the dispatcher routes
// complex turns through. Specialist map iteration order is not stable, so
// the resulting slice is sorted by name for deterministic handoff tool
// registration order.
func BuildTeam(cfg TeamConfig) (engine.Team, error) {
	if cfg.Coordinator.SystemPrompt == "" {
		return engine.Team{}, fmt.Errorf("%w: coordinator.system_prompt", ErrMissingRequiredField)
	}
	if len(cfg.Specialists) == 0 {
		return engine.Team{}, fmt.Errorf("%w: team must declare at least one specialist", ErrValidationFailed)
	}

	names := make([]string, 0, len(cfg.Specialists))
	for name := range cfg.Specialists {
		names = append(names, name)
	}
	sort.Strings(names)

	specialists := make([]models.AgentDefinition, 0, len(names))
	for _, name := range names {
		specialists = append(specialists, toAgentDefinition(name, cfg.Specialists[name]))
	}

	coordinator := toAgentDefinition("coordinator", &cfg.Coordinator)
	coordinator.IsCoordinator = true

	return engine.Team{
		Coordinator: coordinator,
		Specialists: specialists,
	}, nil
}

func toAgentDefinition(name string, a *AgentConfig) models.AgentDefinition {
	return models.AgentDefinition{
		Name:         name,
		RoleDesc:     a.Description,
		SystemPrompt: a.SystemPrompt,
		ToolNames:    a.Tools,
		LLMHandle:    a.LLMHandle,
	}
}
