package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	cstr "github.com/wagtee/go-client/string"
	"github.com/wagtee/go-client/tokens"
)

const refreshKey = "refresh"

// Refreshing reports whether a token refresh is in flight.
func (c *Client) Refreshing() bool {
	return c.refreshing.Load()
}

// OnRefresh registers fn to run after every successful refresh with the stored pair.
func (c *Client) OnRefresh(fn func(tokens.Pair)) {
	c.hooksMu.Lock()
	c.onRefresh = append(c.onRefresh, fn)
	c.hooksMu.Unlock()
}

// OnAuthFailure registers fn to run when a 401 could not be recovered by a refresh.
func (c *Client) OnAuthFailure(fn func()) {
	c.hooksMu.Lock()
	c.onAuthFailure = append(c.onAuthFailure, fn)
	c.hooksMu.Unlock()
}

// Refresh exchanges the stored refresh token for a new access token. Concurrent
// callers share one refresh endpoint call and observe the same outcome. The call
// is detached from ctx cancellation so a caller giving up does not fail the others;
// a cancelled caller returns false without waiting and without clearing anything.
// When the refresh itself fails every stored token is cleared.
func (c *Client) Refresh(ctx context.Context) bool {
	ch := c.refreshGroup.DoChan(refreshKey, func() (any, error) {
		c.refreshing.Store(true)
		defer c.refreshing.Store(false)
		return c.refresh(context.WithoutCancel(ctx)), nil
	})
	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

func (c *Client) refresh(ctx context.Context) bool {
	pair, err := c.storage.Load(ctx)
	if err != nil || pair.Refresh == "" {
		c.logger.Debug("no refresh token available")
		c.clearTokens(ctx)
		return false
	}

	resp := c.do(ctx, Request{
		Method:   http.MethodPost,
		Path:     c.refreshPath,
		Body:     map[string]string{"refresh": pair.Refresh},
		SkipAuth: true,
		noRetry:  true,
	}, true)

	access := gjson.GetBytes(resp.Data, "access").String()
	if !resp.Success || access == "" {
		c.logger.Warn("token refresh failed: %s (%s)", resp.Error, resp.Code)
		c.metrics.Refresh(false)
		c.clearTokens(ctx)
		return false
	}

	next := tokens.Pair{Access: access, Refresh: pair.Refresh}
	if rotated := gjson.GetBytes(resp.Data, "refresh").String(); rotated != "" {
		next.Refresh = rotated
	}
	if exp, err := tokens.ExpiryFromJWT(access); err == nil {
		next.ExpiresAt = exp
	}
	if err := c.storage.Save(ctx, next); err != nil {
		c.logger.Error("failed to persist refreshed tokens: %s", err)
		c.metrics.Refresh(false)
		c.clearTokens(ctx)
		return false
	}
	c.metrics.Refresh(true)
	c.logger.Debug("access token refreshed: %s (expires %s)", cstr.Mask(access), next.ExpiresAt.Format(time.RFC3339))

	c.hooksMu.RLock()
	hooks := append([]func(tokens.Pair){}, c.onRefresh...)
	c.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(next)
	}
	return true
}

func (c *Client) clearTokens(ctx context.Context) {
	if err := c.storage.Clear(ctx); err != nil {
		c.logger.Error("failed to clear tokens: %s", err)
	}
}

func (c *Client) notifyAuthFailure() {
	c.hooksMu.RLock()
	hooks := append([]func(){}, c.onAuthFailure...)
	c.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}
