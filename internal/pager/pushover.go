package pager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/shihand/internal/config"
)

const defaultPushoverURL = "https://api.pushover.net/1/messages.json"

// PushoverChannel delivers pages through the Pushover API.
type PushoverChannel struct {
	token    config.Secret
	user     config.Secret
	endpoint string
	client   *http.Client
}

// NewPushoverChannel builds the primary channel from pager configuration.
// Missing credentials are not an error here: they surface as a delivery
// failure, which routes the page to the fallback.
func NewPushoverChannel(cfg config.PagerConfig) *PushoverChannel {
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PushoverChannel{
		token:    cfg.PushoverToken,
		user:     cfg.PushoverUser,
		endpoint: defaultPushoverURL,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name implements Channel.
func (c *PushoverChannel) Name() string { return "pushover" }

// pushoverResponse is the subset of the API response we read.
type pushoverResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Deliver implements Channel. Priority >= 1 uses the siren sound; priority 2
// carries the retry/expire parameters Pushover requires for emergencies.
func (c *PushoverChannel) Deliver(ctx context.Context, req Request) (string, error) {
	if !c.token.IsSet() || !c.user.IsSet() {
		return "", errors.New("pushover credentials not configured")
	}

	form := url.Values{
		"token":    {c.token.Value()},
		"user":     {c.user.Value()},
		"title":    {req.Title},
		"message":  {req.Body},
		"priority": {strconv.Itoa(req.Priority)},
	}
	if req.Priority >= 1 {
		form.Set("sound", "siren")
	} else {
		form.Set("sound", "pushover")
	}
	if req.Priority == 2 {
		form.Set("retry", "60")
		form.Set("expire", "3600")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building pushover request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("pushover request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pushover rejected page: status %d", resp.StatusCode)
	}

	var parsed pushoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding pushover response: %w", err)
	}
	if parsed.Status != 1 {
		return "", fmt.Errorf("pushover reported status %d", parsed.Status)
	}

	return parsed.Request, nil
}
