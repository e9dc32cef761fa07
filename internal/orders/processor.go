package orders

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor periodically purges expired idempotency records so retried
// checkout keys do not accumulate forever.
type Processor struct {
	db           *Database
	processDelay time.Duration
}

func NewProcessor(db *Database) *Processor {
	return &Processor{
		db:           db,
		processDelay: time.Hour,
	}
}

// Start begins the purge loop and blocks until the context is done.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "idempotency_processor").Logger()
	logger.Info().Msg("starting idempotency processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down idempotency processor")
			return
		case <-ticker.C:
			purged, err := p.db.PurgeExpiredIdempotencyRecords(time.Now())
			if err != nil {
				logger.Error().Err(err).Msg("failed to purge idempotency records")
				continue
			}
			if purged > 0 {
				logger.Info().Int64("purged", purged).Msg("purged expired idempotency records")
			}
		}
	}
}
