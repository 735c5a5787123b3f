package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kiraleos/tweetsmith/internal/metrics"
)

// Instrumented wraps an ObjectStore with Prometheus timings and error logging.
type Instrumented struct {
	next    ObjectStore
	metrics *metrics.Metrics
	backend string
}

func NewInstrumented(next ObjectStore, m *metrics.Metrics, backend string) *Instrumented {
	return &Instrumented{next: next, metrics: m, backend: backend}
}

func (s *Instrumented) Put(ctx context.Context, key string, body []byte, contentType string) error {
	start := time.Now()
	err := s.next.Put(ctx, key, body, contentType)
	s.observe("put", key, err, start)
	return err
}

func (s *Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	body, err := s.next.Get(ctx, key)
	s.observe("get", key, err, start)
	return body, err
}

func (s *Instrumented) ListPrefixed(ctx context.Context, prefix, delimiter string) ([]string, error) {
	start := time.Now()
	prefixes, err := s.next.ListPrefixed(ctx, prefix, delimiter)
	s.observe("list", prefix, err, start)
	return prefixes, err
}

func (s *Instrumented) observe(op, key string, err error, start time.Time) {
	duration := time.Since(start)
	if errors.Is(err, ErrNotFound) {
		// A miss is an answer, not a store failure.
		err = nil
	}
	s.metrics.RecordStoreOperation(op, err, duration)

	event := log.Debug()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.
		Str("component", "store").
		Str("backend", s.backend).
		Str("operation", op).
		Str("key", key).
		Dur("duration_ms", duration).
		Msg("Store operation completed")
}
