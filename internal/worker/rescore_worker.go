// Package worker consumes answer-posted events and re-runs the scoring and
// tally passes for the affected bet.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"betpool-service/internal/app"
)

// AnswerPosted is the event emitted by the submission service whenever a
// posted answer changes.
type AnswerPosted struct {
	BetID    int64     `json:"betId"`
	UserID   int64     `json:"userId"`
	PostedAt time.Time `json:"postedAt"`
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}

// Worker drives the rescore pipeline: every event triggers a full
// MarkCorrectAndScore pass and a standings rebuild for its bet. Both passes
// are idempotent full recomputations, so redelivered events are harmless.
type Worker struct {
	reader  *kafka.Reader
	scoring *app.ScoringService
	tally   *app.TallyService
	log     *zap.Logger
}

func New(reader *kafka.Reader, scoring *app.ScoringService, tally *app.TallyService, log *zap.Logger) *Worker {
	return &Worker{reader: reader, scoring: scoring, tally: tally, log: log}
}

// Run consumes until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		w.Handle(ctx, msg)
	}
}

// Handle processes one event. Malformed payloads and failed passes are logged
// and skipped; the consumer keeps going either way.
func (w *Worker) Handle(ctx context.Context, msg kafka.Message) {
	var event AnswerPosted
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		w.log.Warn("skip malformed event", zap.Error(err), zap.ByteString("key", msg.Key))
		return
	}
	if event.BetID == 0 {
		w.log.Warn("skip event without bet id", zap.ByteString("key", msg.Key))
		return
	}

	if err := w.scoring.MarkCorrectAndScore(ctx, event.BetID); err != nil {
		w.log.Error("rescore failed", zap.Int64("bet_id", event.BetID), zap.Error(err))
		return
	}
	sequence, count, err := w.tally.Rebuild(ctx, event.BetID, time.Time{})
	if err != nil {
		w.log.Error("rebuild failed", zap.Int64("bet_id", event.BetID), zap.Error(err))
		return
	}
	w.log.Info("bet rescored",
		zap.Int64("bet_id", event.BetID),
		zap.Int64("sequence", sequence),
		zap.Int("rows", count),
	)
}

// Close releases the kafka reader.
func (w *Worker) Close() error {
	return w.reader.Close()
}
