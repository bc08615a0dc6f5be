package session

import (
	"context"
	"fmt"
	"time"

	"pkt.systems/culturessh/internal/mailbox"
	"pkt.systems/pslog"
)

// DefaultTick is the redraw period of the update loop.
const DefaultTick = 100 * time.Millisecond

// InviteFetcher resolves a fresh invite link for the interactive view.
type InviteFetcher interface {
	FetchInviteLink(ctx context.Context) (string, error)
}

// LoopConfig configures an UpdateLoop.
type LoopConfig struct {
	Tick    time.Duration
	Fetcher InviteFetcher
	Logger  pslog.Logger
}

type inviteResult struct {
	link string
	err  error
}

// UpdateLoop drives one interactive session: on every tick it drains queued
// input, applies it to the view and redraws. It owns the render surface and
// never touches the session registry.
type UpdateLoop struct {
	surface *Surface
	inbox   *mailbox.Mailbox[event]
	window  inputWindow
	running bool
	tick    time.Duration
	fetcher InviteFetcher
	invite  chan inviteResult
	log     pslog.Logger
}

func newUpdateLoop(surface *Surface, inbox *mailbox.Mailbox[event], cfg LoopConfig) *UpdateLoop {
	tick := cfg.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &UpdateLoop{
		surface: surface,
		inbox:   inbox,
		running: true,
		tick:    tick,
		fetcher: cfg.Fetcher,
		log:     logger,
	}
}

// Run blocks until the user exits, the input queue closes, ctx ends or a
// redraw fails.
func (l *UpdateLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()
	l.log.Debug("tui loop started", "tick", l.tick)
	for {
		l.pollInvite()
		events, open := l.inbox.Drain()
		if !open {
			l.log.Debug("tui loop stopped", "reason", "session closed")
			return nil
		}
		for _, ev := range events {
			l.apply(ctx, ev)
			if !l.running {
				break
			}
		}
		if !l.running {
			l.log.Info("tui exit requested")
			if err := l.surface.Terminal.Close(); err != nil {
				l.log.Debug("tui restore failed", "err", err)
			}
			return nil
		}
		if err := l.surface.Terminal.Draw(l.surface.Model.Draw); err != nil {
			return fmt.Errorf("redraw: %w", err)
		}
		select {
		case <-ctx.Done():
			l.log.Debug("tui loop stopped", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

func (l *UpdateLoop) apply(ctx context.Context, ev event) {
	if ev.resize {
		l.surface.Terminal.Resize(ev.cols, ev.rows)
		return
	}
	switch ev.key.Kind {
	case KeyExit, KeyInterrupt:
		l.running = false
		return
	}
	l.window.push(ev.key.Rune)
	if l.window.String() == ExitToken {
		l.running = false
		return
	}
	if ev.key.Rune == 'd' || ev.key.Rune == 'D' {
		if l.surface.Model.Reveal() {
			l.log.Info("tui invite revealed")
			l.startFetch(ctx)
		}
	}
}

func (l *UpdateLoop) startFetch(ctx context.Context) {
	if l.fetcher == nil {
		return
	}
	l.invite = make(chan inviteResult, 1)
	l.surface.Model.SetPending(true)
	go func(ch chan<- inviteResult) {
		link, err := l.fetcher.FetchInviteLink(ctx)
		ch <- inviteResult{link: link, err: err}
	}(l.invite)
}

func (l *UpdateLoop) pollInvite() {
	if l.invite == nil {
		return
	}
	select {
	case res := <-l.invite:
		l.invite = nil
		l.surface.Model.SetPending(false)
		if res.err != nil {
			l.log.Warn("tui invite fetch failed", "err", res.err)
			return
		}
		l.surface.Model.SetLink(res.link)
		l.log.Debug("tui invite fetched", "link", res.link)
	default:
	}
}
