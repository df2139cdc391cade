package source

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/model"
)

// MarketingSource reads the static product pricing CSV.
type MarketingSource struct {
	Path   string
	Logger *zap.Logger
}

// Extract parses the file; empty fields become nulls.
func (s *MarketingSource) Extract(ctx context.Context) (*dataset.Dataset, error) {
	ds, err := readRawFile(s.Path)
	if err != nil {
		return nil, noData(s.Logger, model.DomainMarketing, err)
	}
	s.Logger.Info("marketing data loaded", zap.String("path", s.Path), zap.Int("rows", ds.Len()))
	return ds, nil
}

func readRawFile(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	ds, err := dataset.ReadRaw(f)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", path)
	}
	return ds, nil
}
