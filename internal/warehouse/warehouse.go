// Package warehouse loads cleaned datasets into the data warehouse.
package warehouse

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/model"
)

// IDColumn is the synthetic primary key added to upserted datasets.
const IDColumn = "id"

// Sink writes a dataset into a named table. For LoadUpsert the dataset's
// IDColumn is the conflict key. Each call is a single transaction.
type Sink interface {
	Load(ctx context.Context, ds *dataset.Dataset, table string, mode model.LoadMode) (int, error)
	Close() error
}

// Binding is where and how a domain's cleaned data lands.
type Binding struct {
	Table string
	Mode  model.LoadMode
}

var bindings = map[model.Domain]Binding{
	model.DomainSales:     {Table: "sales", Mode: model.LoadUpsert},
	model.DomainMarketing: {Table: "marketing", Mode: model.LoadAppend},
	model.DomainScraping:  {Table: "scraping", Mode: model.LoadAppend},
}

// BindingFor returns the warehouse binding of a domain.
func BindingFor(d model.Domain) (Binding, error) {
	b, ok := bindings[d]
	if !ok {
		return Binding{}, eris.Errorf("no warehouse table for domain %q", d)
	}
	return b, nil
}

// Prepare returns the dataset exactly as it will be written for mode. Upserts
// get a leading IDColumn numbered 0..n-1 in row order.
func Prepare(ds *dataset.Dataset, mode model.LoadMode) (*dataset.Dataset, error) {
	out := ds.Clone()
	switch mode {
	case model.LoadAppend:
		return out, nil
	case model.LoadUpsert:
		if err := out.InsertColumn(0, dataset.Column{Name: IDColumn, Kind: dataset.Int}, func(i int) interface{} {
			return int64(i)
		}); err != nil {
			return nil, eris.Wrap(err, "failed to add synthetic id")
		}
		return out, nil
	default:
		return nil, eris.Errorf("unknown load mode %q", mode)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type dialect struct {
	quote       func(string) string
	placeholder func(i int) string
	textType    string
	floatType   string
	intType     string
}

func (d dialect) columnType(k dataset.Kind) string {
	switch k {
	case dataset.Float:
		return d.floatType
	case dataset.Int:
		return d.intType
	default:
		return d.textType
	}
}

func (d dialect) createTableSQL(table string, cols []dataset.Column, mode model.LoadMode) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		def := d.quote(c.Name) + " " + d.columnType(c.Kind)
		if mode == model.LoadUpsert && c.Name == IDColumn {
			def += " PRIMARY KEY"
		}
		defs[i] = def
	}
	return "CREATE TABLE IF NOT EXISTS " + d.quote(table) + " (" + strings.Join(defs, ", ") + ")"
}

func (d dialect) insertSQL(table string, cols []dataset.Column, mode model.LoadMode) string {
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = d.quote(c.Name)
		params[i] = d.placeholder(i + 1)
	}
	q := "INSERT INTO " + d.quote(table) + " (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(params, ", ") + ")"
	if mode != model.LoadUpsert {
		return q
	}

	var sets []string
	for _, c := range cols {
		if c.Name == IDColumn {
			continue
		}
		sets = append(sets, d.quote(c.Name)+" = EXCLUDED."+d.quote(c.Name))
	}
	if len(sets) == 0 {
		return q + " ON CONFLICT (" + d.quote(IDColumn) + ") DO NOTHING"
	}
	return q + " ON CONFLICT (" + d.quote(IDColumn) + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

func checkLoadable(ds *dataset.Dataset, table string, mode model.LoadMode) error {
	if table == "" {
		return eris.New("table name must not be empty")
	}
	if len(ds.Columns) == 0 {
		return eris.Errorf("dataset for table %s has no columns", table)
	}
	if mode == model.LoadUpsert && !ds.HasColumn(IDColumn) {
		return eris.Errorf("upsert into %s requires an %q column", table, IDColumn)
	}
	return nil
}
