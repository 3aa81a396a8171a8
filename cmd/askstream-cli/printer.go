package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/MegaGrindStone/askstream/internal/models"
)

// printer writes answers to the terminal as they stream in. It is the observer of the CLI session.
type printer struct {
	out    io.Writer
	errOut io.Writer

	mu       sync.Mutex
	printed  map[string]int
	midLine  bool
	finished int
	lastEx   models.Exchange

	notify chan struct{}
}

func newPrinter(out, errOut io.Writer) *printer {
	return &printer{
		out:     out,
		errOut:  errOut,
		printed: make(map[string]int),
		notify:  make(chan struct{}, 1),
	}
}

func (p *printer) MessageChanged(msg models.Message) {
	if msg.Role != models.RoleAssistant {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch msg.Status {
	case models.StatusStreaming, models.StatusComplete:
		n := p.printed[msg.ID]
		if len(msg.Text) > n {
			fmt.Fprint(p.out, msg.Text[n:])
			p.printed[msg.ID] = len(msg.Text)
			p.midLine = true
		}
		if msg.Status == models.StatusComplete {
			fmt.Fprintln(p.out)
			p.midLine = false
			delete(p.printed, msg.ID)
		}
	case models.StatusErrored:
		if p.midLine {
			fmt.Fprintln(p.out)
			p.midLine = false
		}
		fmt.Fprintln(p.errOut, msg.Text)
	}
}

func (p *printer) ExchangeChanged(ex models.Exchange) {
	if !ex.State.Terminal() {
		return
	}

	p.mu.Lock()
	p.finished++
	p.lastEx = ex
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// wait blocks until n exchanges have finished.
func (p *printer) wait(ctx context.Context, n int) error {
	for {
		p.mu.Lock()
		finished := p.finished
		p.mu.Unlock()
		if finished >= n {
			return nil
		}

		select {
		case <-p.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// last returns the most recently finished exchange.
func (p *printer) last() models.Exchange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastEx
}
