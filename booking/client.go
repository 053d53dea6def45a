// Package booking is the typed client for the Wagtee booking backend.
package booking

import (
	"context"

	"github.com/wagtee/go-client/api"
	"github.com/wagtee/go-client/chartcache"
	"github.com/wagtee/go-client/resource"
	"github.com/wagtee/go-client/tokens"
)

// Client groups the per-area services over one api.Client. The api.Client and the
// optional cache are owned by the caller.
type Client struct {
	api   *api.Client
	cache *chartcache.Cache

	Auth      *AuthService
	Services  *ServiceService
	Bookings  *BookingService
	Customers *CustomerService
	Public    *PublicService
	Business  *BusinessService
	Analytics *AnalyticsService
}

type Option func(*Client)

// WithCache serves analytics reports through cache.
func WithCache(cache *chartcache.Cache) Option {
	return func(c *Client) { c.cache = cache }
}

func New(client *api.Client, opts ...Option) *Client {
	c := &Client{api: client}
	for _, opt := range opts {
		opt(c)
	}
	c.Auth = &AuthService{client: client}
	c.Services = &ServiceService{resource.New[Service, ServiceInput, ServicePatch](client, "/base/services")}
	c.Bookings = &BookingService{
		Resource: resource.New[Booking, BookingInput, BookingPatch](client, "/base/bookings"),
		cache:    c.cache,
	}
	c.Customers = &CustomerService{resource.New[Customer, CustomerInput, CustomerPatch](client, "/base/customers")}
	c.Public = &PublicService{client: client}
	c.Business = &BusinessService{client: client}
	c.Analytics = &AnalyticsService{client: client, cache: c.cache}
	return c
}

func (c *Client) API() *api.Client {
	return c.api
}

// Cache returns the analytics cache, or nil.
func (c *Client) Cache() *chartcache.Cache {
	return c.cache
}

// SetTokens stores a new credential pair. The expiry is read from the access token.
func (c *Client) SetTokens(ctx context.Context, access, refresh string) error {
	pair := tokens.Pair{Access: access, Refresh: refresh}
	if exp, err := tokens.ExpiryFromJWT(access); err == nil {
		pair.ExpiresAt = exp
	}
	return c.api.Storage().Save(ctx, pair)
}

func (c *Client) ClearTokens(ctx context.Context) error {
	return c.api.Storage().Clear(ctx)
}

// AccessToken returns the stored access token, or "".
func (c *Client) AccessToken(ctx context.Context) string {
	return tokens.Access(ctx, c.api.Storage())
}

func (c *Client) RefreshToken(ctx context.Context) string {
	return tokens.Refresh(ctx, c.api.Storage())
}

// ForceRefresh refreshes the access token now, joining any refresh in flight.
func (c *Client) ForceRefresh(ctx context.Context) bool {
	return c.api.Refresh(ctx)
}

// IsRefreshing reports whether a token refresh is in flight.
func (c *Client) IsRefreshing() bool {
	return c.api.Refreshing()
}
