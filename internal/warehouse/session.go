package warehouse

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/model"
)

// Opener connects a Sink.
type Opener func(ctx context.Context) (Sink, error)

// Session holds one warehouse connection for the duration of a run. The sink
// is opened on first use; an open failure is kept and returned to every later
// load of the run.
type Session struct {
	open   Opener
	logger *zap.Logger

	mu     sync.Mutex
	opened bool
	sink   Sink
	err    error
}

// NewSession returns a session that opens its sink lazily with open.
func NewSession(open Opener, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{open: open, logger: logger}
}

func (s *Session) acquire(ctx context.Context) (Sink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		s.opened = true
		s.sink, s.err = s.open(ctx)
		if s.err != nil {
			s.logger.Error("warehouse connection failed", zap.Error(s.err))
		} else {
			s.logger.Info("warehouse connection opened")
		}
	}
	return s.sink, s.err
}

// Load prepares ds for the domain's binding and writes it. It returns the
// dataset as written.
func (s *Session) Load(ctx context.Context, domain model.Domain, ds *dataset.Dataset) (*dataset.Dataset, error) {
	b, err := BindingFor(domain)
	if err != nil {
		return nil, err
	}
	prepared, err := Prepare(ds, b.Mode)
	if err != nil {
		return nil, err
	}

	sink, err := s.acquire(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse unavailable")
	}

	n, err := sink.Load(ctx, prepared, b.Table, b.Mode)
	if err != nil {
		return nil, err
	}
	s.logger.Info("dataset loaded",
		zap.String("domain", string(domain)),
		zap.String("table", b.Table),
		zap.String("mode", string(b.Mode)),
		zap.Int("rows", n))
	return prepared, nil
}

// Close closes the sink if it was opened and resets the session for reuse.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sink := s.sink
	s.opened, s.sink, s.err = false, nil, nil
	if sink == nil {
		return nil
	}
	return eris.Wrap(sink.Close(), "failed to close warehouse")
}
