package dashboard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/blackwell-systems/pluginwatch/internal/event"
)

// IngestResult is the ingest response body.
type IngestResult struct {
	Accepted int `json:"accepted"`
	Inserted int `json:"inserted"`
}

// Ingest normalizes one raw envelope and stores its events. It returns
// event.ErrNoEvents for an envelope without events. Rows that fail to
// store individually only lower Inserted.
func (s *Service) Ingest(ctx context.Context, raw map[string]any) (IngestResult, error) {
	batch, err := event.Normalize(raw, s.Now())
	if err != nil {
		return IngestResult{}, err
	}
	result := IngestResult{Accepted: batch.Accepted()}

	db, err := s.source.Get(ctx)
	if err != nil {
		return result, err
	}
	inserted, err := db.InsertEvents(ctx, batch.Events)
	if err != nil {
		return result, fmt.Errorf("storing events: %w", err)
	}
	result.Inserted = inserted.Inserted

	if len(inserted.Errors) > 0 {
		s.log.Warn("some events were not stored",
			zap.Int("accepted", result.Accepted),
			zap.Int("inserted", result.Inserted),
			zap.Error(errors.Join(inserted.Errors...)))
	}
	if batch.Received > batch.Accepted() {
		s.log.Info("ingest batch truncated",
			zap.Int("received", batch.Received),
			zap.Int("accepted", batch.Accepted()))
	}
	return result, nil
}
