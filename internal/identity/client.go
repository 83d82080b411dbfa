// Package identity reads patient profiles from the external identity store.
// The booking core only consumes profile fields as booking-request inputs and
// never writes identity records.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	// ErrUpstreamUnavailable means the identity store could not be reached or
	// answered with a server error; the caller should retry later.
	ErrUpstreamUnavailable = errors.New("identity store unavailable")
)

// Profile holds the subset of identity fields a booking request needs.
type Profile struct {
	FullName           string `json:"full_name"`
	StudentStaffNumber string `json:"student_staff_number"`
	Email              string `json:"email"`
	ContactDetails     string `json:"contact_details"`
}

// Complete reports whether every field a booking requires is present.
func (p Profile) Complete() bool {
	return p.FullName != "" && p.StudentStaffNumber != "" && p.Email != "" && p.ContactDetails != ""
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Lookup fetches the profile for an email. 404 maps to ErrProfileNotFound,
// transport failures and 5xx map to ErrUpstreamUnavailable.
func (c *Client) Lookup(ctx context.Context, email string) (*Profile, error) {
	if c.baseURL == "" {
		return nil, ErrUpstreamUnavailable
	}

	u := fmt.Sprintf("%s/api/user_profile?email=%s", c.baseURL, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProfileNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("profile lookup failed with status %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}
