// Package githubapp is a minimal GitHub App API client: App JWT signing,
// installation token management, check runs, and workflow artifact
// retrieval.
package githubapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAPIURL is the public GitHub API base. Override for enterprise
// installs.
const DefaultAPIURL = "https://api.github.com"

const apiVersion = "2022-11-28"

// Client authenticates as a GitHub App and performs API calls on behalf of
// installations. Installation tokens are cached until close to expiry.
type Client struct {
	AppID      string
	PrivateKey []byte
	APIURL     string
	HTTPClient *http.Client

	mu     sync.Mutex
	tokens map[int64]cachedToken
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// NewClient builds a client from the App ID and private key material.
// privateKey may be raw PEM content, a path to a PEM file, or
// base64-encoded PEM; all three forms are common in deployment config.
func NewClient(appID, privateKey, apiURL string) (*Client, error) {
	pem, err := resolvePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		AppID:      appID,
		PrivateKey: pem,
		APIURL:     strings.TrimSuffix(apiURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     make(map[int64]cachedToken),
	}, nil
}

func resolvePrivateKey(material string) ([]byte, error) {
	if strings.HasPrefix(material, "-----BEGIN") {
		return []byte(material), nil
	}
	// Short values may be a file path.
	if len(material) < 256 {
		if content, err := os.ReadFile(material); err == nil {
			return content, nil
		}
	}
	decoded, err := base64.StdEncoding.DecodeString(material)
	if err == nil && strings.HasPrefix(string(decoded), "-----BEGIN") {
		return decoded, nil
	}
	return nil, errors.New("private key must be PEM content, a file path, or base64-encoded PEM")
}

// appJWT signs a short-lived App JWT. iat is backdated 60s to tolerate
// clock drift between us and GitHub.
func (c *Client) appJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(c.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iat": now.Add(-60 * time.Second).Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
		"iss": c.AppID,
	})
	return token.SignedString(key)
}

// InstallationToken returns an access token for the installation, reusing a
// cached token until five minutes before expiry.
func (c *Client) InstallationToken(ctx context.Context, installationID int64) (string, error) {
	c.mu.Lock()
	if cached, ok := c.tokens[installationID]; ok && time.Now().Before(cached.expiresAt.Add(-5*time.Minute)) {
		c.mu.Unlock()
		return cached.token, nil
	}
	c.mu.Unlock()

	appToken, err := c.appJWT()
	if err != nil {
		return "", err
	}

	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.APIURL, installationID)
	if err := c.doJSON(ctx, http.MethodPost, url, appToken, nil, &resp); err != nil {
		return "", fmt.Errorf("create installation token: %w", err)
	}

	expiresAt := resp.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}

	c.mu.Lock()
	c.tokens[installationID] = cachedToken{token: resp.Token, expiresAt: expiresAt}
	c.mu.Unlock()
	return resp.Token, nil
}

// doJSON performs one API call with standard headers, marshaling the
// optional body and unmarshaling the response into out when non-nil.
func (c *Client) doJSON(ctx context.Context, method, url, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("github api %s %s: %s: %s", method, url, resp.Status, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// download fetches a binary payload (artifact zips redirect to blob
// storage; the default client follows redirects).
func (c *Client) download(ctx context.Context, url, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("github api GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
