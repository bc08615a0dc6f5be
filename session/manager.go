// Package session holds the connection registry, the per-session mode
// machine and the interactive update loop behind the ssh transport.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"pkt.systems/culturessh/internal/authlog"
	"pkt.systems/culturessh/internal/logx"
	"pkt.systems/culturessh/schema"
)

// DefaultInteractiveUser selects interactive mode when used as ssh user.
const DefaultInteractiveUser = "tui"

const drainTimeout = time.Second

// Config configures a Manager.
type Config struct {
	// InteractiveUser is the ssh user name that opens the interactive view.
	InteractiveUser string
	// InviteLink is the link shown until a fetched link replaces it.
	InviteLink string
	// Tick is the update loop redraw period.
	Tick time.Duration
}

// Deps are the collaborators of a Manager.
type Deps struct {
	Auth    *authlog.Registry
	Fetcher InviteFetcher
}

// Manager implements the transport callbacks on top of the registry. Every
// callback for one connection is expected to arrive sequentially.
type Manager struct {
	cfg      Config
	registry *Registry
	auth     *authlog.Registry
	fetcher  InviteFetcher
	ids      IDAllocator
	loops    sync.WaitGroup
}

// NewManager constructs a Manager.
func NewManager(cfg Config, deps Deps) *Manager {
	if cfg.InteractiveUser == "" {
		cfg.InteractiveUser = DefaultInteractiveUser
	}
	if cfg.InviteLink == "" {
		cfg.InviteLink = DefaultInviteLink
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	auth := deps.Auth
	if auth == nil {
		auth = authlog.New(nil, nil)
	}
	return &Manager{
		cfg:      cfg,
		registry: NewRegistry(),
		auth:     auth,
		fetcher:  deps.Fetcher,
	}
}

// NextID allocates the identity of a newly accepted connection.
func (m *Manager) NextID() schema.ConnID {
	return m.ids.Next()
}

// Registry exposes the session registry for diagnostics.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Auth exposes the authentication log.
func (m *Manager) Auth() *authlog.Registry {
	return m.auth
}

// Sessions lists the live sessions.
func (m *Manager) Sessions() []schema.SessionInfo {
	return m.registry.Snapshot()
}

// Authenticate records the attempt and reports whether the key is accepted.
func (m *Manager) Authenticate(ctx context.Context, id schema.ConnID, username string, key ssh.PublicKey, remote string) bool {
	attempt := m.auth.Record(ctx, username, key, remote)
	decision := m.auth.Decide(attempt)
	logx.WithConnUser(ctx, id, username).Info("ssh auth attempt",
		"key_type", attempt.KeyType,
		"fingerprint", attempt.Fingerprint,
		"remote", remote,
		"decision", decision,
	)
	return decision == authlog.Accept
}

// ChannelOpen registers a session for id. The ssh user name picks the mode.
// A connection carries at most one session; further channels are refused.
func (m *Manager) ChannelOpen(ctx context.Context, id schema.ConnID, channelID, username string, ch Channel) bool {
	log := logx.WithConnUser(ctx, id, username)
	var state *State
	if username == m.cfg.InteractiveUser {
		state = NewInteractiveState(ch, m.cfg.InviteLink, log)
	} else {
		state = NewPlainState(Routes{InviteLink: m.cfg.InviteLink})
	}
	entry := &Entry{
		ChannelID: channelID,
		Channel:   ch,
		Username:  username,
		State:     state,
	}
	if !m.registry.RegisterNew(id, entry) {
		state.Close()
		log.Info("ssh channel refused", "channel", channelID, "reason", "connection already has a session")
		return false
	}
	log.Info("ssh session opened", "channel", channelID, "mode", state.Mode())
	if seq, err := m.auth.All(ctx); err == nil {
		count := 0
		for range seq {
			count++
		}
		log.Debug("ssh auth log", "entries", count)
	}
	return true
}

// PtyRequest sizes the render surface. Pixel dimensions are ignored.
func (m *Manager) PtyRequest(ctx context.Context, id schema.ConnID, termName string, cols, rows, pxWidth, pxHeight int) {
	err := m.registry.WithSession(id, func(e *Entry) error {
		e.State.Resize(cols, rows)
		return nil
	})
	log := logx.WithConn(ctx, id)
	if err != nil {
		log.Debug("ssh pty request ignored", "err", err)
		return
	}
	log.Debug("ssh pty requested", "term", termName, "cols", cols, "rows", rows)
}

// ShellRequest starts the shell. Plain sessions receive their static content.
// Interactive sessions are drawn once and handed to a new update loop; the
// returned channel closes when that loop ends. It is nil for plain sessions.
func (m *Manager) ShellRequest(ctx context.Context, id schema.ConnID) (<-chan struct{}, error) {
	var (
		content string
		channel Channel
		surface *Surface
		state   *State
	)
	err := m.registry.WithSession(id, func(e *Entry) error {
		text, err := e.State.Serve(e.Username)
		if err != nil {
			return fmt.Errorf("initial draw: %w", err)
		}
		if e.State.Mode() == schema.ModePlain {
			content = text
			channel = e.Channel
			return nil
		}
		surface, err = e.State.TakeSurface()
		state = e.State
		return err
	})
	log := logx.WithConn(ctx, id)
	if err != nil {
		log.Warn("ssh shell request failed", "err", err)
		return nil, err
	}
	if surface == nil {
		if _, err := io.WriteString(channel, content); err != nil {
			log.Warn("ssh shell write failed", "err", err)
			return nil, err
		}
		log.Debug("ssh shell served", "bytes", len(content))
		return nil, nil
	}

	loop := newUpdateLoop(surface, state.inboxQueue(), LoopConfig{
		Tick:    m.cfg.Tick,
		Fetcher: m.fetcher,
		Logger:  log,
	})
	done := make(chan struct{})
	m.loops.Add(1)
	go func() {
		defer m.loops.Done()
		defer close(done)
		if err := loop.Run(ctx); err != nil {
			log.Info("tui loop ended", "err", err)
		}
	}()
	return done, nil
}

// WindowResize applies a terminal resize.
func (m *Manager) WindowResize(ctx context.Context, id schema.ConnID, cols, rows int) {
	err := m.registry.WithSession(id, func(e *Entry) error {
		e.State.Resize(cols, rows)
		return nil
	})
	if err != nil {
		logx.WithConn(ctx, id).Debug("ssh resize ignored", "err", err)
	}
}

// Data applies channel input. It reports true when the session ended as a
// result, in which case the channel has been closed.
func (m *Manager) Data(ctx context.Context, id schema.ConnID, data []byte) bool {
	var (
		quit      bool
		channel   Channel
		channelID string
	)
	err := m.registry.WithSession(id, func(e *Entry) error {
		quit = e.State.HandleInput(data)
		channel = e.Channel
		channelID = e.ChannelID
		return nil
	})
	log := logx.WithConn(ctx, id)
	if errors.Is(err, schema.ErrSessionNotFound) {
		log.Debug("ssh data after close", "bytes", len(data))
		return true
	}
	if !quit {
		return false
	}
	if _, err := io.WriteString(channel, "Goodbye!\r\n"); err != nil {
		log.Debug("ssh goodbye failed", "err", err)
	}
	if entry, ok := m.registry.RemoveChannel(id, channelID); ok {
		entry.State.Close()
	}
	if err := channel.Close(); err != nil {
		log.Debug("ssh channel close failed", "err", err)
	}
	log.Info("ssh session closed", "reason", "quit")
	return true
}

// Disconnect removes the session channelID opened on id. It is idempotent,
// leaves sessions of other channels alone and the entry is gone when it
// returns.
func (m *Manager) Disconnect(ctx context.Context, id schema.ConnID, channelID string) {
	entry, ok := m.registry.RemoveChannel(id, channelID)
	if !ok {
		return
	}
	entry.State.Close()
	log := logx.WithConn(ctx, id)
	if drained := entry.State.Drained(); drained != nil {
		select {
		case <-drained:
		case <-time.After(drainTimeout):
			log.Debug("ssh output drain timed out")
		}
	}
	log.Info("ssh session closed", "reason", "disconnect")
}

// Wait blocks until every update loop started by the manager has returned.
func (m *Manager) Wait() {
	m.loops.Wait()
}
