// Package invite creates single-use Discord channel invites.
package invite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"pkt.systems/culturessh/schema"
	"pkt.systems/pslog"
)

const (
	// DefaultAPIBase is the Discord REST endpoint.
	DefaultAPIBase = "https://discord.com/api/v10"
	// DefaultTimeout bounds one invite request.
	DefaultTimeout = 10 * time.Second

	linkPrefix   = "https://discord.gg/"
	maxErrorBody = 4096
)

// Credentials are read from the environment.
type Credentials struct {
	Token     string `envconfig:"DISCORD_BOT_TOKEN"`
	ChannelID string `envconfig:"DISCORD_CHANNEL_ID"`
}

// CredentialsFromEnv loads credentials from DISCORD_BOT_TOKEN and
// DISCORD_CHANNEL_ID.
func CredentialsFromEnv() (Credentials, error) {
	var creds Credentials
	if err := envconfig.Process("", &creds); err != nil {
		return Credentials{}, fmt.Errorf("discord credentials: %w", err)
	}
	return creds, nil
}

// Configured reports whether both credentials are present.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.ChannelID) != ""
}

// Options configure a Client.
type Options struct {
	APIBase string
	Timeout time.Duration
	HTTP    *http.Client
	Logger  pslog.Logger
}

// Client requests invites from the Discord API.
type Client struct {
	creds   Credentials
	apiBase string
	http    *http.Client
	log     pslog.Logger
}

// NewClient constructs a Client.
func NewClient(creds Credentials, opts Options) *Client {
	base := strings.TrimRight(opts.APIBase, "/")
	if base == "" {
		base = DefaultAPIBase
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Client{creds: creds, apiBase: base, http: httpClient, log: logger}
}

type inviteRequest struct {
	MaxUses   int  `json:"max_uses"`
	MaxAge    int  `json:"max_age"`
	Temporary bool `json:"temporary"`
	Unique    bool `json:"unique"`
}

type inviteResponse struct {
	Code string `json:"code"`
}

// FetchInviteLink creates a single-use invite valid for one minute and
// returns its public link.
func (c *Client) FetchInviteLink(ctx context.Context) (string, error) {
	if !c.creds.Configured() {
		return "", schema.ErrInviteNotConfigured
	}
	payload, err := json.Marshal(inviteRequest{MaxUses: 1, MaxAge: 60, Unique: true})
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/channels/%s/invites", c.apiBase, c.creds.ChannelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build invite request: %w", err)
	}
	req.Header.Set("Authorization", c.creds.Token)
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("discord invite requested", "channel", c.creds.ChannelID)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("discord invite: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("discord api returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out inviteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode invite: %w", err)
	}
	if out.Code == "" {
		return "", fmt.Errorf("discord invite response has no code")
	}
	link := linkPrefix + out.Code
	c.log.Info("discord invite created", "link", link)
	return link, nil
}
