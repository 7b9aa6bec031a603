package engine

import "github.com/dataloom/analystrt/pkg/models"

// Team is a workflow's topology: one coordinator (the entry point and the
// only agent that may hand off) and a closed set of specialists. Teams are
// constructed at pipeline assembly time and are not persisted.
type Team struct {
	Coordinator models.AgentDefinition
	Specialists []models.AgentDefinition
}

func (t Team) specialist(name string) (models.AgentDefinition, bool) {
	for _, s := range t.Specialists {
		if s.Name == name {
			return s, true
		}
	}
	return models.AgentDefinition{}, false
}

// handoffToolName is the pseudo-tool name the coordinator uses to delegate
// a task to the named specialist.
func handoffToolName(specialistName string) string {
	return "handoff_" + specialistName
}
