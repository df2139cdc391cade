package pipeline

import (
	"time"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/model"
	"go-etl-pipeline/pkg/utils"
)

const defaultMaxListedValues = 100

// Profiler summarizes a dataset for diagnostics. It never changes the data.
type Profiler struct {
	// MaxListedValues caps the distinct values listed per column.
	MaxListedValues int
}

// Profile reports shape, column kinds, missing values, duplicate rows and
// distinct values of ds.
func (p *Profiler) Profile(runID string, key model.TaskKey, ds *dataset.Dataset) *model.ProfileReport {
	maxListed := p.MaxListedValues
	if maxListed <= 0 {
		maxListed = defaultMaxListedValues
	}

	report := &model.ProfileReport{
		RunID:          runID,
		Domain:         key.Domain,
		Stage:          key.Stage,
		Rows:           ds.Len(),
		Columns:        len(ds.Columns),
		ColumnProfiles: make([]model.ColumnProfile, 0, len(ds.Columns)),
		CreatedAt:      time.Now(),
	}

	seen := make(map[string]bool, ds.Len())
	for _, row := range ds.Rows {
		k := dataset.RowKey(row)
		if seen[k] {
			report.DuplicateRows++
		}
		seen[k] = true
	}

	for i, col := range ds.Columns {
		cp := model.ColumnProfile{Name: col.Name, Kind: col.Kind.String()}

		var sum float64
		var numeric int
		for _, row := range ds.Rows {
			v := row[i]
			if v == nil {
				cp.Missing++
				continue
			}
			if col.Kind == dataset.Text {
				continue
			}
			f, ok := utils.Numeric(v)
			if !ok {
				continue
			}
			if numeric == 0 || f < *cp.Min {
				cp.Min = floatPtr(f)
			}
			if numeric == 0 || f > *cp.Max {
				cp.Max = floatPtr(f)
			}
			sum += f
			numeric++
		}
		if numeric > 0 {
			cp.Mean = floatPtr(sum / float64(numeric))
		}
		if ds.Len() > 0 {
			cp.MissingPercent = float64(cp.Missing) / float64(ds.Len()) * 100
		}

		counts, _ := ds.ValueCounts(col.Name)
		cp.Distinct = len(counts)
		if cp.Distinct <= maxListed {
			cp.Values = make([]interface{}, len(counts))
			for j, c := range counts {
				cp.Values[j] = c.Value
			}
		}
		report.ColumnProfiles = append(report.ColumnProfiles, cp)
	}
	return report
}

func floatPtr(f float64) *float64 {
	return &f
}
