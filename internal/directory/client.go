// Package directory talks to the platform's user and reservation services.
// The messaging core never owns user or reservation rows; it only resolves
// display identity and booking context through this client.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stayhub/stayhub-backend/internal/common"
	"github.com/stayhub/stayhub-backend/internal/domain"
	"github.com/stayhub/stayhub-backend/pkg/cache"
	pkglogger "github.com/stayhub/stayhub-backend/pkg/logger"
)

// UserDirectory resolves a participant ID to display name and role
type UserDirectory interface {
	LookupUser(ctx context.Context, userID string) (*domain.Participant, error)
}

// ReservationDirectory resolves a reservation ID to its booking context
type ReservationDirectory interface {
	LookupReservation(ctx context.Context, reservationID string) (*domain.ReservationInfo, error)
}

// Client HTTP client for the internal directory API
type Client struct {
	baseURL string
	http    *http.Client
	cache   cache.Service
}

// NewClient creates a new directory client
func NewClient(baseURL string, timeout time.Duration, cacheSvc cache.Service) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cache:   cacheSvc,
	}
}

// LookupUser resolves a user's display identity, cache first
func (c *Client) LookupUser(ctx context.Context, userID string) (*domain.Participant, error) {
	if c.cache != nil && c.cache.IsAvailable() {
		var cached domain.Participant
		if err := c.cache.GetUser(ctx, userID, &cached); err == nil {
			return &cached, nil
		}
	}

	var p domain.Participant
	if err := c.getJSON(ctx, fmt.Sprintf("%s/internal/users/%s", c.baseURL, userID), &p); err != nil {
		return nil, err
	}

	if c.cache != nil && c.cache.IsAvailable() {
		if err := c.cache.SetUser(ctx, userID, &p); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("user_id", userID).Msg("failed to cache user lookup")
		}
	}
	return &p, nil
}

// LookupReservation resolves a reservation's booking context, cache first
func (c *Client) LookupReservation(ctx context.Context, reservationID string) (*domain.ReservationInfo, error) {
	if c.cache != nil && c.cache.IsAvailable() {
		var cached domain.ReservationInfo
		if err := c.cache.GetReservation(ctx, reservationID, &cached); err == nil {
			return &cached, nil
		}
	}

	var info domain.ReservationInfo
	if err := c.getJSON(ctx, fmt.Sprintf("%s/internal/reservations/%s", c.baseURL, reservationID), &info); err != nil {
		return nil, err
	}

	if c.cache != nil && c.cache.IsAvailable() {
		if err := c.cache.SetReservation(ctx, reservationID, &info); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("reservation_id", reservationID).Msg("failed to cache reservation lookup")
		}
	}
	return &info, nil
}

func (c *Client) getJSON(ctx context.Context, url string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}
