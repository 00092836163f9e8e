package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pawpal/backend/internal/config"
)

// identityClient talks to the external identity provider's admin API.
// The provider owns account records; this service only mirrors profile data.
type identityClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func newIdentityClient(cfg config.Config) *identityClient {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}
	return &identityClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.IdentityBaseURL), "/"),
		serviceKey: strings.TrimSpace(cfg.IdentityServiceKey),
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

func (c *identityClient) DeleteUser(ctx context.Context, userID string) error {
	if c.baseURL == "" {
		return errors.New("IDENTITY_BASE_URL is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("user id is required")
	}

	endpoint := c.baseURL + "/admin/users/" + url.PathEscape(userID)
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	if c.serviceKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.serviceKey)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		body, _ := io.ReadAll(response.Body)
		return fmt.Errorf("identity delete error (%d): %s", response.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
