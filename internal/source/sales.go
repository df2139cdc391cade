package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/model"
)

// SalesSource reads the full sales table from the operational Postgres.
type SalesSource struct {
	ConnString string
	Table      string
	Logger     *zap.Logger
}

// Extract runs SELECT * against the sales table.
func (s *SalesSource) Extract(ctx context.Context) (*dataset.Dataset, error) {
	ds, err := s.query(ctx)
	if err != nil {
		return nil, noData(s.Logger, model.DomainSales, err)
	}
	s.Logger.Info("sales data loaded", zap.Int("rows", ds.Len()), zap.Int("columns", len(ds.Columns)))
	return ds, nil
}

func (s *SalesSource) query(ctx context.Context) (*dataset.Dataset, error) {
	conn, err := pgx.Connect(ctx, s.ConnString)
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to sales database")
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, "SELECT * FROM "+pgx.Identifier{s.Table}.Sanitize())
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query %s", s.Table)
	}
	defer rows.Close()

	var names []string
	for _, fd := range rows.FieldDescriptions() {
		names = append(names, fd.Name)
	}

	var values [][]interface{}
	for rows.Next() {
		raw, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "failed to read sales row")
		}
		row := make([]interface{}, len(raw))
		for i, v := range raw {
			row[i] = cellValue(v)
		}
		values = append(values, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", s.Table)
	}
	return fromValues(names, values), nil
}

// cellValue narrows a driver value to a dataset cell.
func cellValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case []byte:
		return string(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case int:
		return int64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// fromValues builds a dataset from query results. A column is Int when every
// non-null cell is an integer, Float when every non-null cell is numeric, else
// Text. All-null columns are Text.
func fromValues(names []string, values [][]interface{}) *dataset.Dataset {
	cols := make([]dataset.Column, len(names))
	for i, name := range names {
		cols[i] = dataset.Column{Name: name, Kind: columnKind(values, i)}
	}

	ds := dataset.New(cols...)
	for _, row := range values {
		for i, v := range row {
			if v == nil {
				continue
			}
			switch cols[i].Kind {
			case dataset.Float:
				if n, ok := v.(int64); ok {
					row[i] = float64(n)
				}
			case dataset.Text:
				s, _ := dataset.AsText(v)
				row[i] = s
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}

func columnKind(values [][]interface{}, col int) dataset.Kind {
	kind, seen := dataset.Int, false
	for _, row := range values {
		switch row[col].(type) {
		case nil:
			continue
		case int64:
		case float64:
			kind = dataset.Float
		default:
			return dataset.Text
		}
		seen = true
	}
	if !seen {
		return dataset.Text
	}
	return kind
}
