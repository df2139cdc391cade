package warehouse

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/model"
)

const upsertBatchSize = 500

var postgresDialect = dialect{
	quote:       func(s string) string { return pgx.Identifier{s}.Sanitize() },
	placeholder: func(i int) string { return "$" + strconv.Itoa(i) },
	textType:    "TEXT",
	floatType:   "DOUBLE PRECISION",
	intType:     "BIGINT",
}

// PostgresSink loads into a Postgres warehouse through a pgx pool.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to the warehouse and verifies the connection.
func OpenPostgres(ctx context.Context, connString string) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse warehouse connection string")
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to warehouse")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "failed to reach warehouse")
	}
	return &PostgresSink{pool: pool}, nil
}

// Load writes ds into table in one transaction. Appends use COPY, upserts a
// batch of INSERT ... ON CONFLICT statements.
func (s *PostgresSink) Load(ctx context.Context, ds *dataset.Dataset, table string, mode model.LoadMode) (int, error) {
	if err := checkLoadable(ds, table, mode); err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "failed to begin warehouse transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, postgresDialect.createTableSQL(table, ds.Columns, mode)); err != nil {
		return 0, eris.Wrapf(err, "failed to create table %s", table)
	}

	var n int
	switch mode {
	case model.LoadAppend:
		copied, err := tx.CopyFrom(ctx, pgx.Identifier{table}, ds.ColumnNames(), pgx.CopyFromRows(ds.Rows))
		if err != nil {
			return 0, eris.Wrapf(err, "failed to copy into %s", table)
		}
		n = int(copied)
	case model.LoadUpsert:
		n, err = upsertRows(ctx, tx, postgresDialect.insertSQL(table, ds.Columns, mode), ds.Rows)
		if err != nil {
			return 0, eris.Wrapf(err, "failed to upsert into %s", table)
		}
	default:
		return 0, eris.Errorf("unknown load mode %q", mode)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "failed to commit load into %s", table)
	}
	return n, nil
}

func upsertRows(ctx context.Context, tx pgx.Tx, query string, rows [][]interface{}) (int, error) {
	total := 0
	for i := 0; i < len(rows); i += upsertBatchSize {
		j := i + upsertBatchSize
		if j > len(rows) {
			j = len(rows)
		}
		b := &pgx.Batch{}
		for _, row := range rows[i:j] {
			b.Queue(query, row...)
		}
		br := tx.SendBatch(ctx, b)
		for k := i; k < j; k++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return total, err
			}
			total++
		}
		if err := br.Close(); err != nil {
			return total, err
		}
	}
	return total, nil
}

// Close releases the pool.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
