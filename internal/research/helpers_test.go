// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/evidence-engine/internal/llm"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// stubClient is a scripted provider. Each call returns the next entry of
// rounds (the last one repeats); delay is slept without watching the
// context to simulate a provider that ignores cancellation.
type stubClient struct {
	kind   types.ProviderKind
	rounds [][]types.SourceRecord
	err    error
	delay  time.Duration

	mu      sync.Mutex
	queries []string
	limits  []int
}

func (c *stubClient) Kind() types.ProviderKind { return c.kind }

func (c *stubClient) Search(_ context.Context, query string, maxResults int) ([]types.SourceRecord, error) {
	c.mu.Lock()
	call := len(c.queries)
	c.queries = append(c.queries, query)
	c.limits = append(c.limits, maxResults)
	c.mu.Unlock()

	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	if len(c.rounds) == 0 {
		return nil, nil
	}
	if call >= len(c.rounds) {
		call = len(c.rounds) - 1
	}
	return c.rounds[call], nil
}

func (c *stubClient) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

// scriptedCompleter answers by system prompt. A missing entry returns an
// error so the caller takes its fallback path.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies map[string][]string
	calls   map[string]int
	users   map[string][]string
}

func newScripted() *scriptedCompleter {
	return &scriptedCompleter{
		replies: make(map[string][]string),
		calls:   make(map[string]int),
		users:   make(map[string][]string),
	}
}

// on queues replies for the component whose system prompt is system.
func (s *scriptedCompleter) on(system string, replies ...string) *scriptedCompleter {
	s.replies[system] = append(s.replies[system], replies...)
	return s
}

func (s *scriptedCompleter) Complete(_ context.Context, system, user string, _ float64, _ int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls[system]
	s.calls[system] = n + 1
	s.users[system] = append(s.users[system], user)
	replies := s.replies[system]
	if len(replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	if n >= len(replies) {
		n = len(replies) - 1
	}
	return replies[n], nil
}

func (s *scriptedCompleter) count(system string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[system]
}

var _ llm.Completer = (*scriptedCompleter)(nil)

func failingCompleter() llm.Completer {
	return llm.CompleterFunc(func(context.Context, string, string, float64, int) (string, error) {
		return "", errors.New("service unavailable")
	})
}

func replyCompleter(reply string) llm.Completer {
	return llm.CompleterFunc(func(context.Context, string, string, float64, int) (string, error) {
		return reply, nil
	})
}

func article(pmid, title string) types.SourceRecord {
	return types.SourceRecord{Kind: types.ProviderPubMed, PMID: pmid, Title: title}
}

func articles(prefix string, n int) []types.SourceRecord {
	out := make([]types.SourceRecord, n)
	for i := range out {
		out[i] = article(fmt.Sprintf("%s%d", prefix, i), fmt.Sprintf("Article %s%d", prefix, i))
	}
	return out
}

func roundWith(n, count int) types.RoundResult {
	return types.RoundResult{RoundNumber: n, SourceCount: count}
}
