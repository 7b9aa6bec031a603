package models

// ToolSideEffectClass classifies what a tool invocation is allowed to touch,
// per the runtime's tool registry invariants.
type ToolSideEffectClass string

const (
	SideEffectPure          ToolSideEffectClass = "pure"           // deterministic function of its arguments
	SideEffectContextWrite  ToolSideEffectClass = "context_write"  // mutates the calling session's ContextState
	SideEffectExternalRead  ToolSideEffectClass = "external_read"  // reads a relational store, vector store, or dataset
	SideEffectExternalWrite ToolSideEffectClass = "external_write" // writes outside the session (e.g. citation export)
)

// ToolDefinition is the static, LLM-facing declaration of one tool: its
// unique name, a description used verbatim in prompts, and a JSON Schema
// for its arguments.
type ToolDefinition struct {
	Name        string
	Description string
	ArgsSchema  map[string]any
	SideEffect  ToolSideEffectClass
}

// AgentDefinition is the static declaration of one role-bound agent within
// a team: its unique name, role prompt, bound tool subset, and the LLM
// handle it calls through.
type AgentDefinition struct {
	Name         string
	RoleDesc     string
	SystemPrompt string
	ToolNames    []string // subset of the registry's ToolDefinition.Name values
	LLMHandle    string   // capability.LLM binding key, e.g. "simple", "medium", "complex"
	IsCoordinator bool
}
