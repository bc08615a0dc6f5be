package sshserver

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"

	"pkt.systems/culturessh/internal/logx"
	"pkt.systems/culturessh/schema"
	"pkt.systems/culturessh/session"
	"pkt.systems/pslog"
)

// Sessions receives the transport callbacks. Callbacks for one connection
// are delivered sequentially.
type Sessions interface {
	NextID() schema.ConnID
	Authenticate(ctx context.Context, id schema.ConnID, username string, key ssh.PublicKey, remote string) bool
	ChannelOpen(ctx context.Context, id schema.ConnID, channelID, username string, ch session.Channel) bool
	PtyRequest(ctx context.Context, id schema.ConnID, term string, cols, rows, pxWidth, pxHeight int)
	ShellRequest(ctx context.Context, id schema.ConnID) (<-chan struct{}, error)
	WindowResize(ctx context.Context, id schema.ConnID, cols, rows int)
	Data(ctx context.Context, id schema.ConnID, data []byte) bool
	Disconnect(ctx context.Context, id schema.ConnID, channelID string)
}

// Server exposes the session manager over SSH.
type Server struct {
	Config
	Listener net.Listener
	Sessions Sessions
	Signer   ssh.Signer

	logger   pslog.Logger
	channels atomic.Uint64
}

type connContextKey string

const connIDKey connContextKey = "conn-id"

// ListenAndServe starts the SSH server and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if s.Sessions == nil {
		return errors.New("session callbacks are required for SSH")
	}
	signer := s.Signer
	if signer == nil {
		var err error
		signer, err = EnsureHostKey(s.KeyDir, s.logger)
		if err != nil {
			return err
		}
	}

	server := &gliderssh.Server{
		Addr:             s.Addr,
		Handler:          s.handleSession,
		PublicKeyHandler: s.handlePublicKey,
		ConnCallback:     s.handleConn,
		IdleTimeout:      s.IdleTimeout,
	}
	server.AddHostKey(signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()
	s.logger.Info("ssh listening", "addr", s.listenAddr(), "idle_timeout", s.IdleTimeout)

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, gliderssh.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) listenAddr() string {
	if s.Listener != nil {
		return s.Listener.Addr().String()
	}
	return s.Addr
}

func (s *Server) handleConn(ctx gliderssh.Context, conn net.Conn) net.Conn {
	id := s.Sessions.NextID()
	ctx.SetValue(connIDKey, id)
	s.logger.Debug("ssh connection accepted", "conn", id, "remote", conn.RemoteAddr().String())
	return conn
}

func (s *Server) connID(ctx gliderssh.Context) schema.ConnID {
	if id, ok := ctx.Value(connIDKey).(schema.ConnID); ok {
		return id
	}
	id := s.Sessions.NextID()
	ctx.SetValue(connIDKey, id)
	return id
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	id := s.connID(ctx)
	return s.Sessions.Authenticate(s.connContext(ctx, id), id, ctx.User(), key, remoteAddr(ctx))
}

func (s *Server) connContext(ctx gliderssh.Context, id schema.ConnID) context.Context {
	log := s.logger.With("conn", id)
	if remote := remoteAddr(ctx); remote != "" {
		log = log.With("remote", remote)
	}
	return logx.ContextWithConnLogger(ctx, log, id)
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	id := s.connID(sess.Context())
	user := sess.User()
	ctx := s.connContext(sess.Context(), id)
	log := logx.WithConnUser(ctx, id, user)
	ctx = logx.ContextWithUser(pslog.ContextWithLogger(ctx, log), user)

	ch := &sessionChannel{sess: sess}
	channelID := strconv.FormatUint(s.channels.Add(1), 10)
	if !s.Sessions.ChannelOpen(ctx, id, channelID, user, ch) {
		log.Info("ssh session rejected", "reason", "channel refused")
		return
	}
	defer s.Sessions.Disconnect(ctx, id, channelID)

	pty, winCh, hasPty := sess.Pty()
	if hasPty {
		s.Sessions.PtyRequest(ctx, id, pty.Term, pty.Window.Width, pty.Window.Height, 0, 0)
	}
	done, err := s.Sessions.ShellRequest(ctx, id)
	if err != nil {
		if errors.Is(err, schema.ErrSessionNotFound) {
			_, _ = io.WriteString(sess, "Session not found.\r\n")
		}
		return
	}

	stop := make(chan struct{})
	defer close(stop)
	input := make(chan []byte)
	go readInput(sess, input, stop)

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case win, ok := <-winCh:
			if !ok {
				winCh = nil
				continue
			}
			s.Sessions.WindowResize(ctx, id, win.Width, win.Height)
		case data, ok := <-input:
			if !ok {
				return
			}
			if s.Sessions.Data(ctx, id, data) {
				return
			}
		}
	}
}

func readInput(r io.Reader, out chan<- []byte, stop <-chan struct{}) {
	defer close(out)
	buf := make([]byte, 1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			select {
			case out <- data:
			case <-stop:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// sessionChannel closes the ssh channel with exit status 0 exactly once.
type sessionChannel struct {
	sess gliderssh.Session
	once sync.Once
	err  error
}

func (c *sessionChannel) Write(p []byte) (int, error) {
	return c.sess.Write(p)
}

func (c *sessionChannel) Close() error {
	c.once.Do(func() {
		c.err = c.sess.Exit(0)
	})
	return c.err
}
