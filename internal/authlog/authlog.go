// Package authlog classifies presented ssh public keys and keeps an
// append-only log of authentication attempts.
package authlog

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"
	"pkt.systems/pslog"
)

// Attempt is one recorded authentication attempt.
type Attempt struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	KeyType     string    `json:"key_type"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Remote      string    `json:"remote,omitempty"`
	Time        time.Time `json:"time"`
}

// Decision is the outcome of an authentication attempt.
type Decision int

const (
	// Accept lets the connection continue.
	Accept Decision = iota
	// Reject refuses the key.
	Reject
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// Store persists attempts in insertion order.
type Store interface {
	Append(ctx context.Context, attempt Attempt) error
	List(ctx context.Context) ([]Attempt, error)
}

// Registry evaluates keys and records attempts. Recording never fails the
// authentication flow.
type Registry struct {
	store Store
	log   pslog.Logger
	now   func() time.Time
}

// New returns a Registry backed by store. A nil store keeps attempts in memory.
func New(store Store, logger pslog.Logger) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Registry{store: store, log: logger, now: time.Now}
}

// Evaluate labels a key by algorithm. The label is informational only.
func (r *Registry) Evaluate(key ssh.PublicKey) string {
	if key == nil {
		return "invalid"
	}
	keyType := key.Type()
	if strings.Contains(keyType, "-cert-") {
		return "certificate"
	}
	switch keyType {
	case ssh.KeyAlgoED25519:
		return "ed25519"
	case ssh.KeyAlgoRSA:
		return "rsa"
	case ssh.KeyAlgoECDSA256, ssh.KeyAlgoECDSA384, ssh.KeyAlgoECDSA521:
		return "ecdsa"
	case ssh.KeyAlgoSKED25519:
		return "sk-ed25519"
	case ssh.KeyAlgoSKECDSA256:
		return "sk-ecdsa"
	case "ssh-dss":
		return "dsa"
	default:
		return "unknown"
	}
}

// Record appends one attempt for username and key and returns it. Store
// errors are logged and swallowed.
func (r *Registry) Record(ctx context.Context, username string, key ssh.PublicKey, remote string) Attempt {
	attempt := Attempt{
		ID:       uuid.NewString(),
		Username: username,
		KeyType:  r.Evaluate(key),
		Remote:   remote,
		Time:     r.now().UTC(),
	}
	if key != nil {
		attempt.Fingerprint = ssh.FingerprintSHA256(key)
	}
	if err := r.store.Append(ctx, attempt); err != nil {
		r.log.Warn("auth attempt not recorded", "user", username, "err", err)
	}
	return attempt
}

// Decide returns the access decision for an attempt. Every key is accepted.
func (r *Registry) Decide(Attempt) Decision {
	return Accept
}

// All returns the recorded attempts in insertion order.
func (r *Registry) All(ctx context.Context) (iter.Seq[Attempt], error) {
	attempts, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return func(yield func(Attempt) bool) {
		for _, attempt := range attempts {
			if !yield(attempt) {
				return
			}
		}
	}, nil
}
