// Package convctx implements the per-session conversation context store: a
// keyed container of tabular artifacts and analysis outputs that survives
// across turns as an opaque, size-bounded snapshot on the Session row.
package convctx

import (
	"sync"

	"github.com/dataloom/analystrt/pkg/models"
)

// LargeTableThreshold is the default row count above which a table is
// snapshotted as a metadata-only descriptor instead of its full rows.
// It applies whenever ContextState.Threshold is left at 0.
const LargeTableThreshold = 1000

// DatasetArtifact is one named entry under ContextState.DatasetData: either
// a full in-memory table or, once it outgrows the size budget, a
// metadata-only descriptor. Exactly one of Table or Descriptor is non-nil.
type DatasetArtifact struct {
	Table      *models.Table
	Descriptor *models.TableDescriptor
}

// IsDescriptor reports whether this artifact has degraded to metadata-only.
func (a DatasetArtifact) IsDescriptor() bool {
	return a.Descriptor != nil
}

// RowCount returns the artifact's row count regardless of which form it holds.
func (a DatasetArtifact) RowCount() int {
	if a.Descriptor != nil {
		return a.Descriptor.RowCount
	}
	if a.Table != nil {
		return len(a.Table.Rows)
	}
	return 0
}

// ContextState is the per-session keyed container threaded through a turn.
// It is constructed fresh per request, optionally restored from the prior
// turn's snapshot, and re-encoded on success.
type ContextState struct {
	UserID string

	DatasetData          map[string]DatasetArtifact
	Clustering            map[string]models.ClusteredTable
	GapAnalysis          map[string]models.GapAnalysis
	TrendAnalysis        map[string]models.TrendAnalysis
	ConversationHistory  []models.HistoryTurn

	// Threshold overrides LargeTableThreshold for this state's PutTable
	// calls; 0 means use the package default.
	Threshold int

	// unknown preserves snapshot keys this build doesn't recognize, so a
	// round trip through an older or newer binary never silently drops data.
	unknown map[string]any

	// writeMu serializes context-write tool mutations within one turn: the
	// engine does not schedule specialists concurrently, but a single
	// agent's parallel tool calls can still race on this state.
	writeMu sync.Mutex
}

// WithWriteLock runs fn with exclusive access to state, for tools whose
// side-effect class is context-write.
func (s *ContextState) WithWriteLock(fn func()) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	fn()
}

// New constructs an empty ContextState owned by userID.
func New(userID string) *ContextState {
	return &ContextState{
		UserID:              userID,
		DatasetData:         make(map[string]DatasetArtifact),
		Clustering:          make(map[string]models.ClusteredTable),
		GapAnalysis:         make(map[string]models.GapAnalysis),
		TrendAnalysis:       make(map[string]models.TrendAnalysis),
		ConversationHistory: nil,
	}
}

// AttachHistory replaces the conversation history attached to state.
func (s *ContextState) AttachHistory(history []models.HistoryTurn) {
	s.ConversationHistory = history
}

// threshold returns the effective large-table threshold for this state.
func (s *ContextState) threshold() int {
	if s.Threshold > 0 {
		return s.Threshold
	}
	return LargeTableThreshold
}

// PutTable stores a table under name, degrading it to a descriptor up front
// if it already exceeds the effective threshold.
func (s *ContextState) PutTable(name string, t models.Table) {
	if s.DatasetData == nil {
		s.DatasetData = make(map[string]DatasetArtifact)
	}
	if len(t.Rows) > s.threshold() {
		s.DatasetData[name] = DatasetArtifact{Descriptor: descriptorOf(t)}
		return
	}
	s.DatasetData[name] = DatasetArtifact{Table: &t}
}

func descriptorOf(t models.Table) *models.TableDescriptor {
	n := len(t.Rows)
	sampleN := n
	if sampleN > 5 {
		sampleN = 5
	}
	return &models.TableDescriptor{
		RowCount: n,
		Columns:  t.Columns,
		DTypes:   t.DTypes,
		Sample:   append([]map[string]any(nil), t.Rows[:sampleN]...),
	}
}
