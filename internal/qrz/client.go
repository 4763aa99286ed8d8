// Package qrz implements a client for the QRZ.com XML callsign database.
// It provides nickname (first name) lookups with a cached session key
// that is refreshed transparently when the service expires it.
package qrz

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/qrqcrew/callsign-notes/internal/errors"
)

// DefaultBaseURL is the production QRZ XML API endpoint
const DefaultBaseURL = "https://xmldata.qrz.com/xml/current/"

const agentName = "callsign-notes-daemon"

// Client is a QRZ XML API client. A single session key is shared across
// lookups; on an expiry signal the key is cleared and the lookup retried
// exactly once with a fresh one.
type Client struct {
	username string
	password string
	baseURL  string
	http     *http.Client
	logger   zerolog.Logger

	mu         sync.RWMutex
	sessionKey string
}

// NewClient creates a QRZ client against the production endpoint
func NewClient(username, password string, logger zerolog.Logger) *Client {
	return NewClientWithBaseURL(username, password, DefaultBaseURL, logger)
}

// NewClientWithBaseURL creates a QRZ client against a custom endpoint
func NewClientWithBaseURL(username, password, baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		username: username,
		password: password,
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// apiResponse covers both session and lookup replies
type apiResponse struct {
	XMLName xml.Name `xml:"QRZDatabase"`
	Session struct {
		Key   string `xml:"Key"`
		Error string `xml:"Error"`
	} `xml:"Session"`
	Callsign struct {
		Call  string `xml:"call"`
		Fname string `xml:"fname"`
	} `xml:"Callsign"`
}

// LookupNickname looks up a callsign and returns its nickname (first
// name), or nil when the callsign is unknown or has no name on file.
func (c *Client) LookupNickname(ctx context.Context, callsign string) (*string, error) {
	// One transparent retry after a session-expiry signal, never more
	for attempt := 0; attempt <= 1; attempt++ {
		key, err := c.getSessionKey(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.get(ctx, url.Values{"s": {key}, "callsign": {callsign}})
		if err != nil {
			return nil, apperrors.NewLookupError(fmt.Sprintf("QRZ lookup request for %s failed", callsign), err)
		}

		if isSessionInvalid(resp.Session.Error) {
			c.logger.Debug().Str("callsign", callsign).Msg("QRZ session expired, refreshing")
			c.clearSession()
			continue
		}

		if strings.HasPrefix(resp.Session.Error, "Not found") {
			c.logger.Debug().Str("callsign", callsign).Msg("Callsign not found in QRZ")
			return nil, nil
		}

		if fname := strings.TrimSpace(resp.Callsign.Fname); fname != "" {
			return &fname, nil
		}
		return nil, nil
	}

	return nil, apperrors.NewLookupError(fmt.Sprintf("QRZ lookup for %s failed after session retry", callsign), nil)
}

// getSessionKey returns the cached session key, authenticating if needed
func (c *Client) getSessionKey(ctx context.Context) (string, error) {
	c.mu.RLock()
	key := c.sessionKey
	c.mu.RUnlock()
	if key != "" {
		return key, nil
	}

	resp, err := c.get(ctx, url.Values{
		"username": {c.username},
		"password": {c.password},
		"agent":    {agentName},
	})
	if err != nil {
		return "", apperrors.NewLookupError("QRZ login request failed", err)
	}

	if resp.Session.Key == "" {
		if resp.Session.Error != "" {
			return "", apperrors.NewUnauthorizedError("QRZ error: " + resp.Session.Error)
		}
		return "", apperrors.NewLookupError("could not parse QRZ session key", nil)
	}

	c.mu.Lock()
	c.sessionKey = resp.Session.Key
	c.mu.Unlock()

	return resp.Session.Key, nil
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.sessionKey = ""
	c.mu.Unlock()
}

func (c *Client) get(ctx context.Context, params url.Values) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed apiResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse QRZ response: %w", err)
	}
	return &parsed, nil
}

func isSessionInvalid(errMsg string) bool {
	return strings.Contains(errMsg, "Session Timeout") ||
		strings.Contains(errMsg, "Invalid session key")
}
