package model

import "time"

// ProfileReport is the diagnostic summary of a dataset: shape, types,
// missing values, duplicates and distinct values per column.
type ProfileReport struct {
	RunID          string          `json:"run_id,omitempty"`
	Domain         Domain          `json:"domain"`
	Stage          Stage           `json:"stage"`
	Rows           int             `json:"rows"`
	Columns        int             `json:"columns"`
	DuplicateRows  int             `json:"duplicate_rows"`
	ColumnProfiles []ColumnProfile `json:"column_profiles"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ColumnProfile describes one column of a profiled dataset.
type ColumnProfile struct {
	Name           string        `json:"name"`
	Kind           string        `json:"kind"`
	Missing        int           `json:"missing"`
	MissingPercent float64       `json:"missing_percent"`
	Distinct       int           `json:"distinct"`
	Values         []interface{} `json:"values,omitempty"` // listed when Distinct <= 100
	Min            *float64      `json:"min,omitempty"`
	Max            *float64      `json:"max,omitempty"`
	Mean           *float64      `json:"mean,omitempty"`
}
