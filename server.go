package culturessh

import (
	"context"
	"errors"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"

	"pkt.systems/culturessh/httpapi"
	"pkt.systems/culturessh/internal/authlog"
	"pkt.systems/culturessh/session"
	"pkt.systems/culturessh/sshserver"
	"pkt.systems/pslog"
)

// Server composes the SSH endpoint and the diagnostics HTTP endpoint.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	SSH     sshserver.Config
	Session session.Config
	HTTP    HTTPConfig
}

// HTTPConfig configures the diagnostics endpoint.
type HTTPConfig struct {
	Addr string
}

// ServerDeps captures dependencies required to build the server. Listeners
// and the host key signer are optional.
type ServerDeps struct {
	Auth         *authlog.Registry
	Fetcher      session.InviteFetcher
	Signer       ssh.Signer
	SSHListener  net.Listener
	HTTPListener net.Listener
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP bool
	enableSSH  bool
}

// WithHTTP enables the diagnostics HTTP server.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithSSH enables the SSH server.
func WithSSH() ServerOption {
	return func(o *serverOptions) { o.enableSSH = true }
}

// New constructs a composable culturessh server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && !options.enableSSH {
		return nil, errors.New("no services enabled")
	}

	manager := session.NewManager(cfg.Session, session.Deps{
		Auth:    deps.Auth,
		Fetcher: deps.Fetcher,
	})

	var sshSrv *sshserver.Server
	if options.enableSSH {
		sshSrv = &sshserver.Server{
			Config:   cfg.SSH,
			Listener: deps.SSHListener,
			Sessions: manager,
			Signer:   deps.Signer,
		}
	}
	var httpSrv *httpapi.Server
	if options.enableHTTP {
		httpSrv = httpapi.NewServer(manager, manager.Auth())
	}

	return &compositeServer{
		cfg:      cfg,
		options:  options,
		manager:  manager,
		sshSrv:   sshSrv,
		httpSrv:  httpSrv,
		httpLn:   deps.HTTPListener,
		finished: make(chan struct{}),
	}, nil
}

type compositeServer struct {
	cfg     ServerConfig
	options serverOptions
	manager *session.Manager
	sshSrv  *sshserver.Server
	httpSrv *httpapi.Server
	httpLn  net.Listener
	logger  pslog.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	errCh    chan error
	started  bool
	wg       sync.WaitGroup
	finished chan struct{}
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"ssh", s.options.enableSSH,
		"http_addr", s.cfg.HTTP.Addr,
		"ssh_addr", s.cfg.SSH.Addr,
		"interactive_user", s.cfg.Session.InteractiveUser,
	)
	if s.httpSrv != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			var err error
			if s.httpLn != nil {
				err = httpapi.Serve(s.ctx, s.httpLn, s.httpSrv.Handler())
			} else {
				err = httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler())
			}
			if err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	if s.sshSrv != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.sshSrv.ListenAndServe(s.ctx); err != nil {
				log.Error("ssh server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	go func() {
		s.wg.Wait()
		s.manager.Wait()
		close(s.finished)
	}()
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested", "sessions", s.manager.Registry().Len())
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.finished:
		log.Info("server stopped")
		return nil
	}
}
