// Package sink defines the write-only persistence contract for produced
// scores. The engine fires writes and forgets; storage is owned by the
// host application.
package sink

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/torp/internal/domain/scoring"
	"github.com/okian/torp/pkg/logger"
)

// Record wraps a Score with the identity assigned at persistence time.
// Identity lives here so the scoring computation itself stays pure.
type Record struct {
	ID        string        `json:"id"`
	Company   string        `json:"company"`
	Score     scoring.Score `json:"score"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewRecord assigns an id and timestamp to a freshly computed score.
func NewRecord(company string, s scoring.Score) Record {
	return Record{
		ID:        uuid.NewString(),
		Company:   company,
		Score:     s,
		CreatedAt: time.Now().UTC(),
	}
}

// Sink persists score records.
type Sink interface {
	Save(ctx context.Context, rec Record) error
}

// LogSink writes records to the structured log. Default when the host
// wires no real storage.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(l logger.Logger) *LogSink {
	if l == nil {
		l = logger.Get().Named("sink")
	}
	return &LogSink{log: l}
}

// Save logs the record.
func (s *LogSink) Save(ctx context.Context, rec Record) error {
	s.log.Info(ctx, "score persisted",
		logger.String("id", rec.ID),
		logger.String("company", rec.Company),
		logger.Int("value", rec.Score.Value),
		logger.String("grade", string(rec.Score.Grade)),
	)
	return nil
}
