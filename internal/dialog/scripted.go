package dialog

import (
	"context"
	"errors"
	"sync"

	"github.com/sparklabs/sparkfs/internal/storage"
)

// ErrScriptExhausted is returned when a Scripted prompter runs out of
// queued answers.
var ErrScriptExhausted = errors.New("no scripted answer queued")

// Scripted is a Prompter that replays queued answers, for tests.
//
// Scripted is safe for concurrent use.
type Scripted struct {
	mu       sync.Mutex
	confirms []bool
	picks    []storage.Entry

	// ConfirmCalls and PickCalls count invocations.
	ConfirmCalls int
	PickCalls    int
}

// Ensure Scripted implements Prompter.
var _ Prompter = (*Scripted)(nil)

// QueueConfirm queues an answer for the next Confirm call.
func (s *Scripted) QueueConfirm(answer bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirms = append(s.confirms, answer)
}

// QueuePick queues an entry for the next PickDirectory call. A nil entry
// scripts a cancellation.
func (s *Scripted) QueuePick(entry storage.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.picks = append(s.picks, entry)
}

// Confirm pops the next scripted answer.
func (s *Scripted) Confirm(ctx context.Context, message, okLabel, title string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ConfirmCalls++
	if len(s.confirms) == 0 {
		return false, ErrScriptExhausted
	}
	answer := s.confirms[0]
	s.confirms = s.confirms[1:]
	return answer, nil
}

// PickDirectory pops the next scripted entry.
func (s *Scripted) PickDirectory(ctx context.Context, suggestedName string) (storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.PickCalls++
	if len(s.picks) == 0 {
		return nil, ErrScriptExhausted
	}
	entry := s.picks[0]
	s.picks = s.picks[1:]
	return entry, nil
}
