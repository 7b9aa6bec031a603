package convctx

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dataloom/analystrt/pkg/models"
)

// wire is the canonical on-disk shape of a ContextState snapshot.
type wire struct {
	UserID              string                     `json:"user_id"`
	DatasetData         map[string]artifactWire    `json:"dataset_data"`
	Clustering          map[string]clusteredWire   `json:"clustering"`
	GapAnalysis         map[string]models.GapAnalysis   `json:"gap_analysis"`
	TrendAnalysis       map[string]models.TrendAnalysis `json:"trend_analysis"`
	ConversationHistory []models.HistoryTurn       `json:"conversation_history"`
	Unknown             map[string]json.RawMessage `json:"-"`
}

type artifactWire struct {
	Kind     string                     `json:"kind"` // "table" or "table_meta"
	Columns  []string                   `json:"columns"`
	DTypes   map[string]models.ColumnDType `json:"dtypes"`
	Rows     []map[string]any          `json:"rows,omitempty"`
	RowCount int                        `json:"row_count,omitempty"`
	Sample   []map[string]any          `json:"sample,omitempty"`
}

type clusteredWire struct {
	Table      artifactWire `json:"table"`
	ClusterIDs []int        `json:"cluster_ids"`
}

// dateTag marks an encoded date/time value so decoding restores it losslessly.
const dateTag = "__datetime__"

// coercedTag marks a value that could not be encoded in its native form.
const coercedTag = "coerced"

// Encode produces the canonical snapshot for state. Per the store's failure
// semantics, encoding never fails its caller: any per-value error is logged
// and the offending value is replaced by a coerced string rendering. The
// snapshot is written empty ({}) if state is nil or if marshaling the whole
// state still fails.
func Encode(logger *slog.Logger, state *ContextState) []byte {
	if logger == nil {
		logger = slog.Default()
	}
	if state == nil {
		return []byte(`{}`)
	}

	w := wire{
		UserID:              state.UserID,
		DatasetData:         make(map[string]artifactWire, len(state.DatasetData)),
		Clustering:          make(map[string]clusteredWire, len(state.Clustering)),
		GapAnalysis:         state.GapAnalysis,
		TrendAnalysis:       state.TrendAnalysis,
		ConversationHistory: state.ConversationHistory,
	}

	for name, a := range state.DatasetData {
		w.DatasetData[name] = encodeArtifact(logger, a)
	}
	for name, c := range state.Clustering {
		w.Clustering[name] = clusteredWire{
			Table:      encodeArtifact(logger, DatasetArtifact{Table: &c.Table}),
			ClusterIDs: c.ClusterIDs,
		}
	}

	buf, err := json.Marshal(w)
	if err != nil {
		logger.Warn("convctx: encode failed, writing empty snapshot", "error", err)
		return []byte(`{}`)
	}

	// Fold back any preserved unknown top-level keys from a prior restore.
	if len(state.unknown) > 0 {
		buf = mergeUnknown(logger, buf, state.unknown)
	}
	return buf
}

func encodeArtifact(logger *slog.Logger, a DatasetArtifact) artifactWire {
	if a.Descriptor != nil {
		d := a.Descriptor
		return artifactWire{
			Kind:     "table_meta",
			Columns:  d.Columns,
			DTypes:   d.DTypes,
			RowCount: d.RowCount,
			Sample:   encodeRows(logger, d.Sample),
		}
	}
	if a.Table != nil {
		t := a.Table
		return artifactWire{
			Kind:    "table",
			Columns: t.Columns,
			DTypes:  t.DTypes,
			Rows:    encodeRows(logger, t.Rows),
		}
	}
	return artifactWire{Kind: "table", Rows: []map[string]any{}}
}

func encodeRows(logger *slog.Logger, rows []map[string]any) []map[string]any {
	if rows == nil {
		return nil
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		enc := make(map[string]any, len(row))
		for k, v := range row {
			enc[k] = encodeValue(logger, v)
		}
		out[i] = enc
	}
	return out
}

// encodeValue normalizes one cell value per the encoding rules: date/times
// get an explicit type tag, native numeric types pass through as JSON
// numbers, and anything else that cannot round-trip through JSON is
// replaced by a logged, coerced string rendering.
func encodeValue(logger *slog.Logger, v any) any {
	switch x := v.(type) {
	case nil, bool, string, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x
	case time.Time:
		return map[string]any{"type": dateTag, "value": x.UTC().Format(time.RFC3339Nano)}
	case map[string]any:
		enc := make(map[string]any, len(x))
		for k, vv := range x {
			enc[k] = encodeValue(logger, vv)
		}
		return enc
	case []any:
		enc := make([]any, len(x))
		for i, vv := range x {
			enc[i] = encodeValue(logger, vv)
		}
		return enc
	default:
		logger.Warn("convctx: coercing unencodable value to string", "go_type", fmt.Sprintf("%T", v))
		return map[string]any{coercedTag: true, "value": fmt.Sprintf("%v", v)}
	}
}

func decodeValue(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if t, ok := m["type"]; ok && t == dateTag {
		if s, ok := m["value"].(string); ok {
			if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return parsed
			}
		}
	}
	if _, ok := m[coercedTag]; ok {
		if s, ok := m["value"].(string); ok {
			return s
		}
	}
	dec := make(map[string]any, len(m))
	for k, vv := range m {
		dec[k] = decodeValue(vv)
	}
	return dec
}

func decodeRows(rows []map[string]any) []map[string]any {
	if rows == nil {
		return nil
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		dec := make(map[string]any, len(row))
		for k, v := range row {
			dec[k] = decodeValue(v)
		}
		out[i] = dec
	}
	return out
}

func decodeArtifact(a artifactWire) DatasetArtifact {
	if a.Kind == "table_meta" {
		return DatasetArtifact{Descriptor: &models.TableDescriptor{
			RowCount: a.RowCount,
			Columns:  a.Columns,
			DTypes:   a.DTypes,
			Sample:   decodeRows(a.Sample),
		}}
	}
	return DatasetArtifact{Table: &models.Table{
		Columns: a.Columns,
		DTypes:  a.DTypes,
		Rows:    decodeRows(a.Rows),
	}}
}

// Restore reconstructs a ContextState from an encoded snapshot. Per the
// store's failure semantics, restoration never fails its caller: a
// malformed snapshot logs a warning and yields a fresh, empty state instead
// of propagating an error. Unknown top-level keys are preserved opaquely so
// a round trip through a different binary version doesn't drop data.
func Restore(logger *slog.Logger, snapshot []byte) *ContextState {
	if logger == nil {
		logger = slog.Default()
	}
	if len(snapshot) == 0 {
		return New("")
	}

	var w wire
	if err := json.Unmarshal(snapshot, &w); err != nil {
		logger.Warn("convctx: malformed snapshot, restoring fresh state", "error", err)
		return New("")
	}

	state := New(w.UserID)
	for name, a := range w.DatasetData {
		state.DatasetData[name] = decodeArtifact(a)
	}
	for name, c := range w.Clustering {
		table := decodeArtifact(c.Table)
		var t models.Table
		if table.Table != nil {
			t = *table.Table
		}
		state.Clustering[name] = models.ClusteredTable{Table: t, ClusterIDs: c.ClusterIDs}
	}
	state.GapAnalysis = w.GapAnalysis
	state.TrendAnalysis = w.TrendAnalysis
	state.ConversationHistory = w.ConversationHistory
	state.unknown = unknownTopLevelKeys(logger, snapshot)
	return state
}

var knownTopLevelKeys = map[string]bool{
	"user_id": true, "dataset_data": true, "clustering": true,
	"gap_analysis": true, "trend_analysis": true, "conversation_history": true,
}

func unknownTopLevelKeys(logger *slog.Logger, snapshot []byte) map[string]any {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(snapshot, &raw); err != nil {
		return nil
	}
	var extra map[string]any
	for k, v := range raw {
		if knownTopLevelKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			logger.Warn("convctx: dropping unparseable unknown key", "key", k, "error", err)
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = val
	}
	return extra
}

func mergeUnknown(logger *slog.Logger, buf []byte, unknown map[string]any) []byte {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(buf, &m); err != nil {
		return buf
	}
	for k, v := range unknown {
		if knownTopLevelKeys[k] {
			continue
		}
		enc, err := json.Marshal(v)
		if err != nil {
			logger.Warn("convctx: dropping unknown key on re-encode", "key", k, "error", err)
			continue
		}
		m[k] = enc
	}
	out, err := json.Marshal(m)
	if err != nil {
		return buf
	}
	return out
}
