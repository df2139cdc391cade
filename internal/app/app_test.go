package app

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-etl-pipeline/internal/config"
	"go-etl-pipeline/internal/model"
	"go-etl-pipeline/internal/pipeline"
	"go-etl-pipeline/internal/store"
)

const marketingCSV = `Unnamed: 0,name,prices.availability,prices.condition,prices.shipping,weight,manufacturer,ean,Unnamed: 26
0,TV,32 available,New,USD5.00,1 lb 8 oz,Sony,123,
1,Radio,sold,new other (see details),,12 pounds,,,
2,Fan,Retired,New,Free Shipping,8 ounces,Dyson,,
3,Lamp,in stock,Used,USD 25.50,heavy,Ikea,,
4,Clock,Yes,Refurbished,,,Casio,,
`

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	marketing := filepath.Join(dir, "marketing.csv")
	require.NoError(t, os.WriteFile(marketing, []byte(marketingCSV), 0o644))
	return &config.Config{
		Warehouse: config.WarehouseConfig{
			Driver:     config.WarehouseSQLite,
			SQLitePath: filepath.Join(dir, "warehouse.db"),
		},
		DataDir:           filepath.Join(dir, "data"),
		StateDBPath:       filepath.Join(dir, "state.db"),
		CheckpointBackend: backend,
		MarketingCSVPath:  marketing,
		Scraping: config.ScrapingConfig{
			IndexURL: "http://127.0.0.1:0/",
			Pages:    1,
			RawPath:  filepath.Join(dir, "scraping.csv"),
			LogPath:  filepath.Join(dir, "scraping.log"),
		},
		ProfileEnabled: true,
	}
}

func TestNewSelectsCheckpointBackend(t *testing.T) {
	a, err := New(testConfig(t, config.CheckpointSQLite), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &store.CheckpointStore{}, a.Checkpoints)
	assert.Equal(t, 9, a.Orchestrator.Graph.Len())
	assert.NotNil(t, a.Orchestrator.Profiler)

	b, err := New(testConfig(t, config.CheckpointArtifact), zap.NewNop())
	require.NoError(t, err)
	defer b.Close()
	assert.IsType(t, &pipeline.ArtifactCheckpointer{}, b.Checkpoints)
}

func TestMarketingRunIntoSQLiteWarehouse(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.CheckpointSQLite)
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	target := model.TaskKey{Domain: model.DomainMarketing, Stage: model.StageLoad}
	summary, err := a.Orchestrator.Run(ctx, "run-1", []model.TaskKey{target})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Executed)

	wh, err := sql.Open("sqlite3", cfg.Warehouse.SQLitePath)
	require.NoError(t, err)
	defer wh.Close()
	var rows int
	require.NoError(t, wh.QueryRow(`SELECT COUNT(*) FROM marketing`).Scan(&rows))
	// USED and REFURBISHED are the two rarest conditions
	assert.Equal(t, 3, rows)

	cps, err := a.Checkpoints.List(ctx)
	require.NoError(t, err)
	assert.Len(t, cps, 3)

	reports, err := a.DB.GetProfiles(ctx, model.DomainMarketing)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	// a second run skips every completed task and appends nothing
	summary, err = a.Orchestrator.Run(ctx, "run-2", []model.TaskKey{target})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Skipped)
	require.NoError(t, wh.QueryRow(`SELECT COUNT(*) FROM marketing`).Scan(&rows))
	assert.Equal(t, 3, rows)
}
