package sshserver

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"pkt.systems/pslog"
)

const (
	privateKeyFile = "private_key.pem"
	publicKeyFile  = "public_key.pub"
)

// HostKeyPaths returns the private and public key paths inside dir.
func HostKeyPaths(dir string) (string, string) {
	return filepath.Join(dir, privateKeyFile), filepath.Join(dir, publicKeyFile)
}

// EnsureHostKey loads the host key from dir, generating and storing a new
// ed25519 key when none exists or the existing one cannot be parsed.
func EnsureHostKey(dir string, logger pslog.Logger) (ssh.Signer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("ssh key dir is required")
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	privPath, pubPath := HostKeyPaths(dir)
	if _, err := os.Stat(privPath); err == nil {
		signer, err := loadHostKey(privPath)
		if err == nil {
			logger.Info("ssh host key loaded", "path", privPath, "fingerprint", ssh.FingerprintSHA256(signer.PublicKey()))
			return signer, nil
		}
		logger.Warn("ssh host key unreadable", "path", privPath, "err", err)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat host key: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create host key dir: %w", err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "culturessh")
	if err != nil {
		return nil, fmt.Errorf("marshal host key: %w", err)
	}
	if err := os.WriteFile(privPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("write host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("host key signer: %w", err)
	}
	if err := os.WriteFile(pubPath, ssh.MarshalAuthorizedKey(signer.PublicKey()), 0o644); err != nil {
		return nil, fmt.Errorf("write host public key: %w", err)
	}
	logger.Info("ssh host key generated", "path", privPath, "fingerprint", ssh.FingerprintSHA256(signer.PublicKey()))
	return signer, nil
}

func loadHostKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read host key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse host key: %w", err)
	}
	return signer, nil
}
