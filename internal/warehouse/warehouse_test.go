package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/model"
)

func productRows(t *testing.T, names ...string) *dataset.Dataset {
	t.Helper()
	ds := dataset.New(
		dataset.Column{Name: "product_name", Kind: dataset.Text},
		dataset.Column{Name: "actual_price", Kind: dataset.Float},
	)
	for i, n := range names {
		require.NoError(t, ds.Append(n, float64(100*(i+1))))
	}
	return ds
}

func TestPrepareUpsertAddsSequentialIDs(t *testing.T) {
	ds := productRows(t, "a", "b", "c")

	out, err := Prepare(ds, model.LoadUpsert)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "product_name", "actual_price"}, out.ColumnNames())
	assert.Equal(t, int64(0), out.Rows[0][0])
	assert.Equal(t, int64(2), out.Rows[2][0])
	// input untouched
	assert.Equal(t, []string{"product_name", "actual_price"}, ds.ColumnNames())

	out, err = Prepare(ds, model.LoadAppend)
	require.NoError(t, err)
	assert.Equal(t, ds.ColumnNames(), out.ColumnNames())
}

func TestBindings(t *testing.T) {
	b, err := BindingFor(model.DomainSales)
	require.NoError(t, err)
	assert.Equal(t, Binding{Table: "sales", Mode: model.LoadUpsert}, b)

	b, err = BindingFor(model.DomainScraping)
	require.NoError(t, err)
	assert.Equal(t, model.LoadAppend, b.Mode)

	_, err = BindingFor("weather")
	assert.Error(t, err)
}

func TestPostgresUpsertSQL(t *testing.T) {
	cols := []dataset.Column{{Name: "id", Kind: dataset.Int}, {Name: "price", Kind: dataset.Float}}

	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "sales" ("id" BIGINT PRIMARY KEY, "price" DOUBLE PRECISION)`,
		postgresDialect.createTableSQL("sales", cols, model.LoadUpsert))
	assert.Equal(t,
		`INSERT INTO "sales" ("id", "price") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "price" = EXCLUDED."price"`,
		postgresDialect.insertSQL("sales", cols, model.LoadUpsert))
}

func openSQLiteSink(t *testing.T) (*SQLiteSink, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dwh.db")
	sink, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink, path
}

func countRows(t *testing.T, path, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+quoteIdent(table)).Scan(&n))
	return n
}

func TestSQLiteAppendAccumulates(t *testing.T) {
	ctx := context.Background()
	sink, path := openSQLiteSink(t)
	ds := productRows(t, "a", "b")

	for i := 0; i < 2; i++ {
		n, err := sink.Load(ctx, ds, "marketing", model.LoadAppend)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}
	assert.Equal(t, 4, countRows(t, path, "marketing"))
}

func TestSQLiteUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	sink, path := openSQLiteSink(t)

	first, err := Prepare(productRows(t, "a", "b", "c"), model.LoadUpsert)
	require.NoError(t, err)
	_, err = sink.Load(ctx, first, "sales", model.LoadUpsert)
	require.NoError(t, err)

	second, err := Prepare(productRows(t, "x", "y"), model.LoadUpsert)
	require.NoError(t, err)
	_, err = sink.Load(ctx, second, "sales", model.LoadUpsert)
	require.NoError(t, err)

	assert.Equal(t, 3, countRows(t, path, "sales"))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	var name string
	require.NoError(t, db.QueryRow(`SELECT product_name FROM sales WHERE id = 0`).Scan(&name))
	assert.Equal(t, "x", name)
	require.NoError(t, db.QueryRow(`SELECT product_name FROM sales WHERE id = 2`).Scan(&name))
	assert.Equal(t, "c", name)
}

func TestSQLiteUpsertRequiresID(t *testing.T) {
	sink, _ := openSQLiteSink(t)
	_, err := sink.Load(context.Background(), productRows(t, "a"), "sales", model.LoadUpsert)
	assert.Error(t, err)
}

type fakeSink struct {
	loads  int
	closed bool
}

func (f *fakeSink) Load(_ context.Context, ds *dataset.Dataset, _ string, _ model.LoadMode) (int, error) {
	f.loads++
	return ds.Len(), nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestSessionOpensOnceAndCachesFailure(t *testing.T) {
	ctx := context.Background()

	opens := 0
	failing := NewSession(func(context.Context) (Sink, error) {
		opens++
		return nil, errors.New("connection refused")
	}, nil)
	_, err := failing.Load(ctx, model.DomainSales, productRows(t, "a"))
	assert.Error(t, err)
	_, err = failing.Load(ctx, model.DomainMarketing, productRows(t, "a"))
	assert.Error(t, err)
	assert.Equal(t, 1, opens)
	require.NoError(t, failing.Close())

	sink := &fakeSink{}
	opens = 0
	ok := NewSession(func(context.Context) (Sink, error) {
		opens++
		return sink, nil
	}, nil)
	out, err := ok.Load(ctx, model.DomainSales, productRows(t, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "id", out.Columns[0].Name)
	_, err = ok.Load(ctx, model.DomainScraping, productRows(t, "a"))
	require.NoError(t, err)

	assert.Equal(t, 1, opens)
	assert.Equal(t, 2, sink.loads)
	require.NoError(t, ok.Close())
	assert.True(t, sink.closed)
}
