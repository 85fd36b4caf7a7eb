// Package userclient talks to the external Account & Position Service. The
// service is the source of record for balances, daily limits and held
// positions; every read here is a point-in-time snapshot and every mutation
// an independent call with no transaction spanning them.
package userclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var (
	// ErrUnavailable marks transport failures and 5xx responses; callers in
	// background loops treat it as retryable.
	ErrUnavailable = errors.New("account service unavailable")
	// ErrNotFound marks 404 responses.
	ErrNotFound = errors.New("account service: not found")
)

// Profile is the account snapshot returned by /users/my-profile.
type Profile struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Position    string      `json:"position"`
	BankAccount BankAccount `json:"bankAccount"`
}

// BankAccount carries the balance figures used by admission.
type BankAccount struct {
	AccountBalance float64 `json:"accountBalance"`
	DailyLimit     float64 `json:"dailyLimit"`
}

// PositionAdministrator is the role required for order approve/reject.
const PositionAdministrator = "ADMINISTRATOR"

// Listing is one held position row from /user-listings.
type Listing struct {
	ID          string `json:"id"`
	ListingType string `json:"listingType"`
	Symbol      string `json:"symbol"`
	Quantity    int    `json:"quantity"`
}

// Client wraps REST access to the Account & Position Service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New builds a client against the given base URL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// MyProfile fetches the calling user's account snapshot.
func (c *Client) MyProfile(ctx context.Context, token string) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, token, http.MethodGet, "/users/my-profile", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReduceDailyLimit lowers the user's remaining daily spending limit.
func (c *Client) ReduceDailyLimit(ctx context.Context, token, userID string, decrease float64) error {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("decreaseLimit", formatAmount(decrease))
	return c.do(ctx, token, http.MethodPut, "/users/reduce-daily-limit", q, nil, nil)
}

// DecreaseBalance debits the calling user's account.
func (c *Client) DecreaseBalance(ctx context.Context, token string, amount float64) error {
	q := url.Values{}
	q.Set("decreaseAccount", formatAmount(amount))
	return c.do(ctx, token, http.MethodPut, "/users/decrease-balance", q, nil, nil)
}

// IncreaseBalance credits the calling user's account.
func (c *Client) IncreaseBalance(ctx context.Context, token string, amount float64) error {
	q := url.Values{}
	q.Set("increaseAccount", formatAmount(amount))
	return c.do(ctx, token, http.MethodPut, "/users/increase-balance", q, nil, nil)
}

// Listings fetches all held positions for a user.
func (c *Client) Listings(ctx context.Context, token, userID string) ([]Listing, error) {
	q := url.Values{}
	q.Set("userId", userID)
	var res []Listing
	if err := c.do(ctx, token, http.MethodGet, "/user-listings", q, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// FindListing fetches the user's listing for one instrument class + symbol,
// or nil if the user holds none. Filtering happens locally; the service only
// exposes the full list.
func (c *Client) FindListing(ctx context.Context, token, userID, listingType, symbol string) (*Listing, error) {
	listings, err := c.Listings(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		if listings[i].ListingType == listingType && listings[i].Symbol == symbol {
			return &listings[i], nil
		}
	}
	return nil, nil
}

// CreateListing creates a holding row (typically zero-quantity) for a user.
func (c *Client) CreateListing(ctx context.Context, token, userID string, l Listing) (*Listing, error) {
	q := url.Values{}
	q.Set("userId", userID)
	var created Listing
	if err := c.do(ctx, token, http.MethodPost, "/user-listings/create", q, l, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateListing sets the held quantity of an existing listing.
func (c *Client) UpdateListing(ctx context.Context, token, listingID string, newQuantity int) (*Listing, error) {
	q := url.Values{}
	q.Set("newQuantity", strconv.Itoa(newQuantity))
	var updated Listing
	if err := c.do(ctx, token, http.MethodPut, "/user-listings/update/"+listingID, q, nil, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) do(ctx context.Context, token, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case res.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s status %d", ErrUnavailable, method, path, res.StatusCode)
	case res.StatusCode >= 400:
		return fmt.Errorf("account service: %s %s status %d", method, path, res.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
