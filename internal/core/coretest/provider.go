// Package coretest provides scripted completion providers for tests.
package coretest

import (
	"context"
	"io"
	"sync"

	"github.com/kiraleos/tweetsmith/internal/core"
)

// Provider replays Fragments, then fails with FailWith (if set) or ends cleanly.
// StartErr makes StreamCompletion itself fail.
type Provider struct {
	Fragments []string
	FailWith  error
	StartErr  error

	mu           sync.Mutex
	instructions []string
}

func (p *Provider) StreamCompletion(_ context.Context, instruction string) (core.FragmentIterator, error) {
	p.mu.Lock()
	p.instructions = append(p.instructions, instruction)
	p.mu.Unlock()

	if p.StartErr != nil {
		return nil, p.StartErr
	}
	return &fragments{remaining: append([]string(nil), p.Fragments...), failWith: p.FailWith}, nil
}

// Instructions returns every instruction the provider has been asked to complete.
func (p *Provider) Instructions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.instructions...)
}

type fragments struct {
	remaining []string
	failWith  error
}

func (f *fragments) Next() (string, error) {
	if len(f.remaining) == 0 {
		if f.failWith != nil {
			return "", f.failWith
		}
		return "", io.EOF
	}
	frag := f.remaining[0]
	f.remaining = f.remaining[1:]
	return frag, nil
}
