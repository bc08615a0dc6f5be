package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pkt.systems/culturessh/internal/appconfig"
	"pkt.systems/culturessh/internal/authlog"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := "config_version: 1\n" +
		"ssh:\n  key_dir: " + filepath.Join(dir, "keys") + "\n" +
		"auth_log:\n  sqlite_path: " + filepath.Join(dir, "auth.db") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"serve", "config", "hostkey", "auth-log", "version"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing command %q", name)
		}
	}
}

func TestConfigInitWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	out, err := runRoot(t, "config", "init", "--config", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if strings.TrimSpace(out) != path {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := runRoot(t, "config", "init", "--config", path); err == nil {
		t.Fatalf("expected refusal without --force")
	}
	out, err = runRoot(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "interactive_user: tui") {
		t.Fatalf("unexpected config show output %q", out)
	}
}

func TestHostKeyCommandIsStable(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())
	first, err := runRoot(t, "hostkey", "--config", cfgPath)
	if err != nil {
		t.Fatalf("hostkey: %v", err)
	}
	if !strings.HasPrefix(first, "SHA256:") || !strings.Contains(first, "ssh-ed25519 ") {
		t.Fatalf("unexpected hostkey output %q", first)
	}
	second, err := runRoot(t, "hostkey", "--config", cfgPath)
	if err != nil {
		t.Fatalf("hostkey again: %v", err)
	}
	if first != second {
		t.Fatalf("expected the stored key to be reused")
	}
}

func TestAuthLogCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	store, err := authlog.OpenSQLite(context.Background(), filepath.Join(dir, "auth.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, user := range []string{"hello", "tui"} {
		if err := store.Append(context.Background(), authlog.Attempt{ID: user, Username: user, KeyType: "ed25519", Time: time.Now()}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = store.Close()

	out, err := runRoot(t, "auth-log", "--config", cfgPath, "--limit", "1")
	if err != nil {
		t.Fatalf("auth-log: %v", err)
	}
	if !strings.Contains(out, "USER") || !strings.Contains(out, "tui") || strings.Contains(out, "hello") {
		t.Fatalf("unexpected auth-log output %q", out)
	}
}

func TestToServerConfig(t *testing.T) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	serverCfg := toServerConfig(cfg)
	if serverCfg.SSH.IdleTimeout != time.Hour {
		t.Fatalf("unexpected idle timeout %v", serverCfg.SSH.IdleTimeout)
	}
	if serverCfg.Session.Tick != 100*time.Millisecond || serverCfg.Session.InteractiveUser != "tui" {
		t.Fatalf("unexpected session config %+v", serverCfg.Session)
	}
}
