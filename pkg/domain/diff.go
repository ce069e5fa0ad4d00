package domain

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentStepID  *string `json:"current_step_id,omitempty"`
	ErrorCount     *int    `json:"error_count,omitempty"`
	IterationCount *int    `json:"iteration_count,omitempty"`

	// History holds appended entries, or the whole history when it was rewritten
	// by a summary.
	History *HistoryDelta `json:"history,omitempty"`

	// ActiveFlows lists the flow IDs active after the change, when the set changed.
	ActiveFlows []string `json:"active_flows,omitempty"`
}

// HistoryDelta represents changes to the history.
type HistoryDelta struct {
	Appended History `json:"appended,omitempty"`
	// Replaced is set when the old history is not a prefix of the new one.
	Replaced History `json:"replaced,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap (initial load).
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}

	diff := &SnapshotDiff{SessionID: newSnap.SessionID}

	if oldSnap == nil || oldSnap.CurrentStepID != newSnap.CurrentStepID {
		id := newSnap.CurrentStepID
		diff.CurrentStepID = &id
	}
	if oldSnap == nil || oldSnap.ErrorCount != newSnap.ErrorCount {
		n := newSnap.ErrorCount
		diff.ErrorCount = &n
	}
	if oldSnap == nil || oldSnap.IterationCount != newSnap.IterationCount {
		n := newSnap.IterationCount
		diff.IterationCount = &n
	}

	diff.History = diffHistory(oldSnap, newSnap)

	oldFlows, newFlows := activeFlowIDs(oldSnap), activeFlowIDs(newSnap)
	if !equalStrings(oldFlows, newFlows) {
		diff.ActiveFlows = newFlows
		if diff.ActiveFlows == nil {
			diff.ActiveFlows = []string{}
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffHistory(old, new *Snapshot) *HistoryDelta {
	if old == nil {
		if len(new.History) == 0 {
			return nil
		}
		return &HistoryDelta{Appended: new.History}
	}
	if !new.History.HasPrefix(old.History) {
		return &HistoryDelta{Replaced: new.History}
	}
	if len(new.History) > len(old.History) {
		return &HistoryDelta{Appended: new.History[len(old.History):]}
	}
	return nil
}

func activeFlowIDs(s *Snapshot) []string {
	if s == nil {
		return nil
	}
	var ids []string
	for _, fc := range s.Flows {
		ids = append(ids, fc.FlowID)
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.CurrentStepID == nil &&
		d.ErrorCount == nil &&
		d.IterationCount == nil &&
		d.History == nil &&
		d.ActiveFlows == nil
}
