package models

// FieldChange is one cell-level before/after pair
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// RowChange is one updated row with its per-field changes
type RowChange struct {
	// Row identity: key-column value, or row position for positional diffs
	Key     any                    `json:"key"`
	Changes map[string]FieldChange `json:"changes"`
}

// Diff is the categorized delta between two versions. The three sets
// are disjoint by construction.
type Diff struct {
	Added   []Row       `json:"added"`
	Updated []RowChange `json:"updated"`
	Deleted []Row       `json:"deleted"`

	// True when no stable key column was configured and rows were
	// matched by position, which has reduced fidelity.
	Positional bool `json:"positional,omitempty"`
}

// CellsChanged is the sum of changed-field counts across updated rows
func (d *Diff) CellsChanged() int {
	n := 0
	for _, rc := range d.Updated {
		n += len(rc.Changes)
	}
	return n
}
