package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dataloom/analystrt/pkg/apperrors"
	"github.com/dataloom/analystrt/pkg/capability"
	"github.com/dataloom/analystrt/pkg/convctx"
	"github.com/dataloom/analystrt/pkg/models"
)

// Deps bundles the capability interfaces tool implementations are thinly
// built over.
type Deps struct {
	LLM             capability.LLM
	Embedder        capability.Embedder
	RelationalStore capability.RelationalStore
	VectorStore     capability.VectorStore
	Logger          *slog.Logger
}

// ExecFunc is one tool's implementation. State is the calling turn's
// ContextState; context-write tools must mutate it only inside
// state.WithWriteLock.
type ExecFunc func(ctx context.Context, deps Deps, state *convctx.ContextState, args map[string]any) Result

// tool is one registered catalog entry.
type tool struct {
	def    models.ToolDefinition
	schema *jsonschema.Schema
	exec   ExecFunc
}

// Registry is the closed, statically assembled set of tools available to a
// process. The set cannot grow after NewRegistry returns.
type Registry struct {
	tools map[string]tool
	deps  Deps
}

// NewRegistry compiles every tool's argument schema and returns a ready
// Registry. A schema that fails to compile is a programming error and
// panics at startup rather than surfacing at invocation time.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := &Registry{tools: make(map[string]tool), deps: deps}
	for _, d := range catalog(deps) {
		compiled, err := jsonschema.CompileString(d.def.Name+".schema.json", mustMarshalSchema(d.def.ArgsSchema))
		if err != nil {
			panic(fmt.Sprintf("tools: invalid schema for %q: %v", d.def.Name, err))
		}
		r.tools[d.def.Name] = tool{def: d.def, schema: compiled, exec: d.exec}
	}
	return r
}

// Definitions returns the LLM-facing declarations of the named tools, in the
// order given, for handing to capability.LLM as the team's bound tool subset.
// Names that are not registered are skipped.
func (r *Registry) Definitions(names []string) []models.ToolDefinition {
	out := make([]models.ToolDefinition, 0, len(names))
	for _, n := range names {
		if t, ok := r.tools[n]; ok {
			out = append(out, t.def)
		}
	}
	return out
}

// Invoke validates args against the named tool's schema and, on success,
// executes it. Invoke is total: a panic inside exec is recovered and
// returned as an error Result so the caller never sees a raw exception
// from a tool.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, state *convctx.ContextState) (result Result) {
	t, ok := r.tools[name]
	if !ok {
		return errorResult("NotFound", fmt.Sprintf("tool %q is not registered", name))
	}

	if err := t.schema.Validate(toValidatable(args)); err != nil {
		return errorResult("InvalidArgument", fmt.Sprintf("%s: %v", apperrors.ErrInvalidArgument, err))
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.deps.Logger.Error("tools: recovered panic in tool execution", "tool", name, "panic", rec)
			result = errorResult("Internal", fmt.Sprintf("tool %q panicked: %v", name, rec))
		}
	}()

	return t.exec(ctx, r.deps, state, args)
}

func mustMarshalSchema(schema map[string]any) string {
	buf, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	return string(buf)
}

// toValidatable round-trips args through JSON so map[string]any with Go
// native numeric types (int, int64, …) matches jsonschema's expectations
// (float64 for all JSON numbers).
func toValidatable(args map[string]any) any {
	buf, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var v any
	if err := json.Unmarshal(buf, &v); err != nil {
		return args
	}
	return v
}
