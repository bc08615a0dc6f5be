package integration_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"pkt.systems/culturessh"
	"pkt.systems/culturessh/internal/authlog"
	"pkt.systems/culturessh/session"
	"pkt.systems/culturessh/sshserver"
)

type testServer struct {
	sshAddr  string
	httpAddr string
	auth     *authlog.Registry
	server   culturessh.Server
}

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func startTestServer(t *testing.T, fetcher session.InviteFetcher) *testServer {
	t.Helper()
	sshLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	httpLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	auth := authlog.New(authlog.NewMemoryStore(), nil)
	cfg := culturessh.ServerConfig{
		SSH: sshserver.Config{
			Addr:        sshLn.Addr().String(),
			KeyDir:      t.TempDir(),
			IdleTimeout: time.Minute,
		},
		Session: session.Config{
			InteractiveUser: "tui",
			InviteLink:      "discord.gg/12345",
			Tick:            10 * time.Millisecond,
		},
		HTTP: culturessh.HTTPConfig{Addr: httpLn.Addr().String()},
	}
	srv, err := culturessh.New(cfg, culturessh.ServerDeps{
		Auth:         auth,
		Fetcher:      fetcher,
		SSHListener:  sshLn,
		HTTPListener: httpLn,
	}, culturessh.WithSSH(), culturessh.WithHTTP())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return &testServer{
		sshAddr:  sshLn.Addr().String(),
		httpAddr: httpLn.Addr().String(),
		auth:     auth,
		server:   srv,
	}
}

func newTestSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}

func dialSSH(t *testing.T, addr, user string) *ssh.Client {
	t.Helper()
	var client *ssh.Client
	var err error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		client, err = ssh.Dial("tcp", addr, &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(newTestSigner(t))},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         5 * time.Second,
		})
		if err == nil {
			t.Cleanup(func() { _ = client.Close() })
			return client
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("dial ssh: %v", err)
	return nil
}

func startSSHSession(t *testing.T, client *ssh.Client, pty bool) (io.WriteCloser, *lockedBuffer, *ssh.Session) {
	t.Helper()
	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	if pty {
		if err := sess.RequestPty("xterm-256color", 40, 100, ssh.TerminalModes{}); err != nil {
			t.Fatal(err)
		}
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Shell(); err != nil {
		t.Fatal(err)
	}
	output := &lockedBuffer{}
	go func() {
		_, _ = io.Copy(output, stdout)
	}()
	return stdin, output, sess
}

func expectOutput(t *testing.T, buffer *lockedBuffer, substr string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.Contains(buffer.String(), substr) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %q in output: %q", substr, buffer.String())
}

func waitForSessionClose(t *testing.T, sess *ssh.Session) {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- sess.Wait()
	}()
	select {
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not close")
	case <-done:
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}
