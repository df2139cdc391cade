package warehouse

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	quote:       quoteIdent,
	placeholder: func(int) string { return "?" },
	textType:    "TEXT",
	floatType:   "REAL",
	intType:     "INTEGER",
}

// SQLiteSink loads into a local SQLite warehouse file.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the warehouse database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open warehouse %s", path)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "failed to reach warehouse %s", path)
	}
	return &SQLiteSink{db: db}, nil
}

// Load writes ds into table in one transaction.
func (s *SQLiteSink) Load(ctx context.Context, ds *dataset.Dataset, table string, mode model.LoadMode) (int, error) {
	if err := checkLoadable(ds, table, mode); err != nil {
		return 0, err
	}
	if mode != model.LoadAppend && mode != model.LoadUpsert {
		return 0, eris.Errorf("unknown load mode %q", mode)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "failed to begin warehouse transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqliteDialect.createTableSQL(table, ds.Columns, mode)); err != nil {
		return 0, eris.Wrapf(err, "failed to create table %s", table)
	}

	stmt, err := tx.PrepareContext(ctx, sqliteDialect.insertSQL(table, ds.Columns, mode))
	if err != nil {
		return 0, eris.Wrapf(err, "failed to prepare insert into %s", table)
	}
	defer stmt.Close()

	for i, row := range ds.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "failed to insert row %d into %s", i, table)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "failed to commit load into %s", table)
	}
	return len(ds.Rows), nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
