package core

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kiraleos/tweetsmith/internal/metrics"
)

// FragmentIterator yields text fragments in provider order and io.EOF once generation ends.
type FragmentIterator interface {
	Next() (string, error)
}

// Provider is a streaming single-turn text completion service.
type Provider interface {
	StreamCompletion(ctx context.Context, instruction string) (FragmentIterator, error)
}

// Relay turns a PromptSpec into a provider call and relays the provider's output as a Stream.
type Relay struct {
	provider Provider
	window   int
	metrics  *metrics.Metrics
}

// NewRelay creates a relay that forwards at most window trailing conversation turns.
func NewRelay(provider Provider, window int, m *metrics.Metrics) *Relay {
	return &Relay{
		provider: provider,
		window:   window,
		metrics:  m,
	}
}

// Generate validates spec and starts a completion. Validation failures are returned directly;
// provider failures are delivered through the returned Stream.
func (r *Relay) Generate(ctx context.Context, spec PromptSpec) (*Stream, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	instruction := ComposeInstruction(spec, r.window)
	log.Debug().
		Str("component", "relay").
		Int("instruction_len", len(instruction)).
		Int("history_turns", len(trailingTurns(spec.ConversationHistory, r.window))).
		Msg("Starting completion")

	s := &Stream{metrics: r.metrics}
	it, err := r.provider.StreamCompletion(ctx, instruction)
	if err != nil {
		s.finish(err)
		return s, nil
	}
	s.it = it
	return s, nil
}

// Stream is a single-use, ordered sequence of fragments. It is not safe for concurrent use.
//
// Next returns fragments until the provider finishes, then io.EOF. If the provider fails,
// Next returns a *RelayError. Once a terminal value has been returned, every later call
// returns it again.
type Stream struct {
	it        FragmentIterator
	fragments int
	err       error
	metrics   *metrics.Metrics
}

func (s *Stream) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for {
		frag, err := s.it.Next()
		if errors.Is(err, io.EOF) {
			s.finish(nil)
			return "", s.err
		}
		if err != nil {
			s.finish(err)
			return "", s.err
		}
		if frag == "" {
			continue
		}
		s.fragments++
		s.metrics.RecordFragment()
		return frag, nil
	}
}

// Fragments reports how many fragments have been delivered so far.
func (s *Stream) Fragments() int {
	return s.fragments
}

func (s *Stream) finish(err error) {
	if err == nil {
		s.err = io.EOF
		s.metrics.RecordStream(metrics.OutcomeCompleted)
		log.Debug().Str("component", "relay").Int("fragments", s.fragments).Msg("Completion finished")
		return
	}

	s.err = &RelayError{Fragments: s.fragments, Err: err}
	if s.fragments == 0 {
		s.metrics.RecordStream(metrics.OutcomeFailedBeforeFirst)
	} else {
		s.metrics.RecordStream(metrics.OutcomeFailedMidStream)
	}
	log.Error().Err(err).Str("component", "relay").Int("fragments", s.fragments).Msg("Completion failed")
}

// Collect drains s and returns the concatenated text. On failure the text received so far is
// returned together with the error.
func Collect(s *Stream) (string, error) {
	var sb strings.Builder
	for {
		frag, err := s.Next()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(frag)
	}
}
