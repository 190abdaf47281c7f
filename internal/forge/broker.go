// File: internal/forge/broker.go
package forge

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v58/github"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/config"
)

// minTokenTTL is the floor below which a cached installation token is
// considered near-expiry and refreshed eagerly.
const minTokenTTL = 5 * time.Minute

// appJWTTTL is how long the short-lived App-level JWT used to mint
// installation tokens is valid for. GitHub rejects anything over 10 minutes.
const appJWTTTL = 9 * time.Minute

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// CredentialBroker mints and caches per-installation bearer tokens for the
// source forge. It prefers GitHub App credentials and falls back to a
// long-lived personal token when app credentials are absent.
type CredentialBroker struct {
	cfg    config.ForgeConfig
	logger *zap.Logger

	privateKey *rsa.PrivateKey

	mu    sync.Mutex
	cache map[int64]cachedToken

	group singleflight.Group

	// appsTransport builds an *github.Client authenticated as the App,
	// used only to mint installation tokens. Overridable in tests.
	newAppClient func() (*github.Client, error)
}

// NewCredentialBroker constructs a broker from forge configuration. It does
// not fail if neither app credentials nor a fallback token are configured;
// that failure surfaces lazily from Token, as AuthUnconfigured.
func NewCredentialBroker(cfg config.ForgeConfig, logger *zap.Logger) (*CredentialBroker, error) {
	b := &CredentialBroker{
		cfg:    cfg,
		logger: logger.Named("forge.broker"),
		cache:  make(map[int64]cachedToken),
	}

	if cfg.AppID != 0 && cfg.AppPrivateKey != "" {
		key, err := parsePrivateKey(cfg.AppPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("parse app private key: %w", err)
		}
		b.privateKey = key
	}

	b.newAppClient = b.buildAppClient
	return b, nil
}

func parsePrivateKey(pemBlock string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemBlock))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	generic, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse PKCS#8 key: %w", err)
	}
	key, ok := generic.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}

// InstallationID resolves the installation id for a repository, caching the
// result for the lifetime of the broker (installations rarely move).
func (b *CredentialBroker) InstallationID(ctx context.Context, owner, repo string) (int64, error) {
	if b.privateKey == nil {
		return 0, schemas.NewForgeError("CredentialBroker.InstallationID", schemas.ErrCodeAuthUnconfigured,
			fmt.Errorf("GitHub App credentials are not configured"))
	}

	key := fmt.Sprintf("lookup:%s/%s", owner, repo)
	v, err, _ := b.group.Do(key, func() (interface{}, error) {
		appClient, err := b.newAppClient()
		if err != nil {
			return int64(0), schemas.NewForgeError("CredentialBroker.InstallationID", schemas.ErrCodeAuthUnconfigured, err)
		}
		installation, resp, err := appClient.Apps.FindRepositoryInstallation(ctx, owner, repo)
		if err != nil {
			return int64(0), translateGitHubError("CredentialBroker.InstallationID", resp, err)
		}
		return installation.GetID(), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Token returns a bearer token valid for at least minTokenTTL. When
// installationID is 0 and only a fallback token is configured, the fallback
// is returned directly.
func (b *CredentialBroker) Token(ctx context.Context, installationID int64) (string, error) {
	if b.privateKey == nil {
		if b.cfg.FallbackToken != "" {
			return b.cfg.FallbackToken, nil
		}
		return "", schemas.NewForgeError("CredentialBroker.Token", schemas.ErrCodeAuthUnconfigured,
			fmt.Errorf("neither GitHub App credentials nor a fallback token are configured"))
	}

	b.mu.Lock()
	cached, ok := b.cache[installationID]
	b.mu.Unlock()
	if ok && time.Until(cached.expiresAt) > minTokenTTL {
		return cached.token, nil
	}

	key := fmt.Sprintf("install:%d", installationID)
	v, err, _ := b.group.Do(key, func() (interface{}, error) {
		return b.mintInstallationToken(ctx, installationID)
	})
	if err != nil {
		if b.cfg.FallbackToken != "" {
			b.logger.Warn("installation token mint failed, using fallback token",
				zap.Int64("installation_id", installationID), zap.Error(err))
			return b.cfg.FallbackToken, nil
		}
		return "", err
	}
	return v.(string), nil
}

func (b *CredentialBroker) mintInstallationToken(ctx context.Context, installationID int64) (string, error) {
	appClient, err := b.newAppClient()
	if err != nil {
		return "", schemas.NewForgeError("CredentialBroker.mintInstallationToken", schemas.ErrCodeAuthUnconfigured, err)
	}

	tok, _, err := appClient.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return "", schemas.NewForgeError("CredentialBroker.mintInstallationToken", schemas.ErrCodeUpstream, err)
	}

	expiresAt := time.Now().Add(55 * time.Minute)
	if tok.ExpiresAt != nil {
		expiresAt = tok.ExpiresAt.Time
	}

	b.mu.Lock()
	b.cache[installationID] = cachedToken{token: tok.GetToken(), expiresAt: expiresAt}
	b.mu.Unlock()

	return tok.GetToken(), nil
}

// buildAppClient signs a fresh App-level JWT and wraps it in a go-github
// client. The JWT is intentionally not cached: it is cheap to mint and its
// TTL is far shorter than an installation token's.
func (b *CredentialBroker) buildAppClient() (*github.Client, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-30 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTTTL)),
		Issuer:    fmt.Sprintf("%d", b.cfg.AppID),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(b.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign app jwt: %w", err)
	}

	httpClient := &http.Client{Timeout: b.cfg.RequestTimeout}
	client := github.NewClient(httpClient).WithAuthToken(signed)
	if b.cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(b.cfg.BaseURL, b.cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("configure enterprise base url: %w", err)
		}
	}
	return client, nil
}
