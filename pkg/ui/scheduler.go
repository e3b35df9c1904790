package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// DrainMsg asks the model to apply queued mirror events.
type DrainMsg struct{}

// Scheduler bridges mirror.WithScheduler to a running Program: each batch
// of backend events becomes one DrainMsg, handled on the program's
// goroutine like any other message.
//
// Batches posted before Attach are delivered once the program is attached.
type Scheduler struct {
	mu     sync.Mutex
	p      *tea.Program
	missed bool
}

// Schedule is the hook handed to mirror.WithScheduler. It never blocks:
// backend mutations issued from Update post events synchronously, and
// Program.Send would wait for Update to return.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	p := s.p
	if p == nil {
		s.missed = true
	}
	s.mu.Unlock()
	if p != nil {
		go p.Send(DrainMsg{})
	}
}

// Attach starts delivering to p.
func (s *Scheduler) Attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	missed := s.missed
	s.missed = false
	s.mu.Unlock()
	if missed {
		go p.Send(DrainMsg{})
	}
}
