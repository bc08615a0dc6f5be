package sshserver

import (
	"bytes"
	"os"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestEnsureHostKeyGeneratesAndReloads(t *testing.T) {
	dir := t.TempDir()
	signer, err := EnsureHostKey(dir, nil)
	if err != nil {
		t.Fatalf("ensure host key: %v", err)
	}
	if signer.PublicKey().Type() != ssh.KeyAlgoED25519 {
		t.Fatalf("expected ed25519 host key, got %s", signer.PublicKey().Type())
	}
	privPath, pubPath := HostKeyPaths(dir)
	info, err := os.Stat(privPath)
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 private key, got %v", info.Mode().Perm())
	}
	pub, err := os.ReadFile(pubPath)
	if err != nil {
		t.Fatalf("read public key: %v", err)
	}
	if !bytes.Equal(pub, ssh.MarshalAuthorizedKey(signer.PublicKey())) {
		t.Fatalf("public key file does not match signer")
	}

	again, err := EnsureHostKey(dir, nil)
	if err != nil {
		t.Fatalf("reload host key: %v", err)
	}
	if ssh.FingerprintSHA256(again.PublicKey()) != ssh.FingerprintSHA256(signer.PublicKey()) {
		t.Fatalf("expected existing key to be loaded")
	}
}

func TestEnsureHostKeyReplacesUnreadableKey(t *testing.T) {
	dir := t.TempDir()
	privPath, _ := HostKeyPaths(dir)
	if err := os.WriteFile(privPath, []byte("garbage"), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	signer, err := EnsureHostKey(dir, nil)
	if err != nil {
		t.Fatalf("ensure host key: %v", err)
	}
	data, err := os.ReadFile(privPath)
	if err != nil {
		t.Fatalf("read private key: %v", err)
	}
	parsed, err := ssh.ParsePrivateKey(data)
	if err != nil {
		t.Fatalf("expected regenerated key to parse: %v", err)
	}
	if ssh.FingerprintSHA256(parsed.PublicKey()) != ssh.FingerprintSHA256(signer.PublicKey()) {
		t.Fatalf("stored key does not match returned signer")
	}
}

func TestEnsureHostKeyRequiresDir(t *testing.T) {
	if _, err := EnsureHostKey("  ", nil); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
