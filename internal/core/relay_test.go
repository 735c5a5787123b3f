package core_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kiraleos/tweetsmith/internal/core"
	"github.com/kiraleos/tweetsmith/internal/core/coretest"
	"github.com/kiraleos/tweetsmith/internal/metrics"
)

func TestGenerateRelaysFragmentsInOrder(t *testing.T) {
	provider := &coretest.Provider{Fragments: []string{"Red", " planet", "", " vibes 🚀"}}
	m := metrics.New(prometheus.NewRegistry())
	relay := core.NewRelay(provider, 5, m)

	stream, err := relay.Generate(context.Background(), core.PromptSpec{Prompt: "write a tweet about Mars", Tone: "Witty"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var got []string
	for {
		frag, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Unexpected stream error: %v", err)
		}
		got = append(got, frag)
	}

	if strings.Join(got, "|") != "Red| planet| vibes 🚀" {
		t.Errorf("Unexpected fragments %q", got)
	}
	if stream.Fragments() != 3 {
		t.Errorf("Expected 3 fragments, got %d", stream.Fragments())
	}
	if testutil.ToFloat64(m.RelayStreamsTotal.WithLabelValues(metrics.OutcomeCompleted)) != 1 {
		t.Error("Expected a completed stream to be recorded")
	}

	instructions := provider.Instructions()
	if len(instructions) != 1 || !strings.Contains(instructions[0], "Tone: Witty") {
		t.Errorf("Expected one composed instruction with the tone, got %q", instructions)
	}
}

func TestStreamIsNotRestartable(t *testing.T) {
	relay := core.NewRelay(&coretest.Provider{Fragments: []string{"only"}}, 5, nil)
	stream, err := relay.Generate(context.Background(), core.PromptSpec{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	text, err := core.Collect(stream)
	if err != nil || text != "only" {
		t.Fatalf("Collect = %q, %v", text, err)
	}
	for i := 0; i < 3; i++ {
		if frag, err := stream.Next(); frag != "" || !errors.Is(err, io.EOF) {
			t.Errorf("Expected io.EOF after completion, got %q, %v", frag, err)
		}
	}
}

func TestGenerateFailureBeforeFirstFragment(t *testing.T) {
	boom := errors.New("quota exceeded")

	for name, provider := range map[string]*coretest.Provider{
		"start fails":      {StartErr: boom},
		"first next fails": {FailWith: boom},
	} {
		t.Run(name, func(t *testing.T) {
			relay := core.NewRelay(provider, 5, nil)
			stream, err := relay.Generate(context.Background(), core.PromptSpec{Prompt: "x"})
			if err != nil {
				t.Fatalf("Expected provider failure through the stream, got %v", err)
			}

			text, err := core.Collect(stream)
			if text != "" {
				t.Errorf("Expected zero fragments, got %q", text)
			}
			var relayErr *core.RelayError
			if !errors.As(err, &relayErr) {
				t.Fatalf("Expected *RelayError, got %v", err)
			}
			if relayErr.Fragments != 0 || !errors.Is(err, boom) {
				t.Errorf("Unexpected relay error %+v", relayErr)
			}
			if _, again := stream.Next(); again != err {
				t.Errorf("Expected the same terminal error, got %v", again)
			}
		})
	}
}

func TestGenerateFailureMidStream(t *testing.T) {
	boom := errors.New("connection reset")
	m := metrics.New(prometheus.NewRegistry())
	relay := core.NewRelay(&coretest.Provider{Fragments: []string{"Red", " planet"}, FailWith: boom}, 5, m)

	stream, err := relay.Generate(context.Background(), core.PromptSpec{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	text, err := core.Collect(stream)
	if text != "Red planet" {
		t.Errorf("Expected delivered fragments to be kept, got %q", text)
	}
	var relayErr *core.RelayError
	if !errors.As(err, &relayErr) || relayErr.Fragments != 2 {
		t.Fatalf("Expected *RelayError after 2 fragments, got %v", err)
	}
	if testutil.ToFloat64(m.RelayStreamsTotal.WithLabelValues(metrics.OutcomeFailedMidStream)) != 1 {
		t.Error("Expected a mid-stream failure to be recorded")
	}
}

func TestGenerateRejectsInvalidSpec(t *testing.T) {
	provider := &coretest.Provider{Fragments: []string{"x"}}
	relay := core.NewRelay(provider, 5, nil)

	_, err := relay.Generate(context.Background(), core.PromptSpec{Prompt: ""})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("Expected ErrValidation, got %v", err)
	}
	if len(provider.Instructions()) != 0 {
		t.Error("Expected the provider not to be called")
	}
}
