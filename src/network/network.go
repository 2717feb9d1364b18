package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pulseops/src/logger"
	"pulseops/src/models"
)

type NetworkManager struct {
	Config *models.MConfig
	Client *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewNetworkManager(cfg *models.MConfig, log *logger.Logger) *NetworkManager {
	return &NetworkManager{
		Config: cfg,
		Client: &http.Client{
			Timeout: time.Duration(cfg.Network.RequestTimeout) * time.Second,
		},
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and exponential backoff.
func (nm *NetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	return nm.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, "GET", reqUrl.String(), nil)
	})
}

// -----------------------------------------------------------------------------

// PostForm performs a POST with a URL-encoded form body and HTTP basic
// credentials, with retries and exponential backoff. Client errors other
// than 429 are returned immediately: retrying a rejected credential set
// never helps.
func (nm *NetworkManager) PostForm(ctx context.Context, urlStr string, form url.Values, basicUser, basicPass string) ([]byte, error) {
	body := form.Encode()

	return nm.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", urlStr, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if basicUser != "" {
			req.SetBasicAuth(basicUser, basicPass)
		}
		return req, nil
	})
}

// -----------------------------------------------------------------------------

// do runs the request loop. Each attempt builds a fresh request so bodies
// are never re-read.
func (nm *NetworkManager) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	maxRetries := nm.Config.Network.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i*i) * time.Second): // Exponential backoff
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		if nm.Config.Network.UserAgent != "" {
			req.Header.Set("User-Agent", nm.Config.Network.UserAgent)
		}

		resp, err := nm.Client.Do(req)
		if err != nil {
			lastErr = err
			nm.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == 200:
			if readErr != nil {
				lastErr = readErr
				continue
			}
			return body, nil
		case resp.StatusCode == 429 || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("bad status: %d", resp.StatusCode)
			nm.Logger.Info("Bad status %d (attempt %d/%d)", resp.StatusCode, i+1, maxRetries+1)
			continue
		default:
			// Non-retryable client error
			return nil, fmt.Errorf("request rejected with status %d", resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %v", lastErr)
}
