// Package source holds the extract-side connectors of each domain.
package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/model"
)

// ErrNoData marks an extract that produced no dataset. The underlying cause is
// in the error message and in the log.
var ErrNoData = eris.New("no data extracted")

// Source produces a domain's raw dataset.
type Source interface {
	Extract(ctx context.Context) (*dataset.Dataset, error)
}

func noData(logger *zap.Logger, domain model.Domain, err error) error {
	logger.Error("extract failed", zap.String("domain", string(domain)), zap.Error(err))
	return eris.Wrapf(ErrNoData, "%s: %v", domain, err)
}
