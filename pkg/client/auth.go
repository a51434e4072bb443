package client

import (
	"context"
	"net/http"

	"github.com/platinummonkey/helpdesk/pkg/session"
	"github.com/platinummonkey/helpdesk/pkg/users"
)

// Login signs in and stores the token, profile and permission matrix in the
// session.
func (c *Client) Login(ctx context.Context, email, password string) (*users.LoginResult, error) {
	var res users.LoginResult
	req := users.LoginRequest{Email: email, Password: password}
	if _, err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &res); err != nil {
		return nil, err
	}

	if err := c.session.SetToken(ctx, res.Token); err != nil {
		return nil, err
	}
	profile := session.Profile(res.User)
	if err := c.session.SetUser(ctx, &profile); err != nil {
		return nil, err
	}
	if err := c.session.Permissions.Load(ctx, res.Permissions); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout revokes the token server side when possible and wipes the local
// session either way.
func (c *Client) Logout(ctx context.Context) error {
	if c.session.Authenticated(ctx) {
		if _, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil); err != nil {
			c.logger.WithError(err).Warn("server logout failed")
		}
	}
	return c.session.Reset(ctx)
}

// ForgotPassword requests a reset link. The reply is the same whether or not
// the address is registered.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", nil, users.ForgotPasswordRequest{Email: email}, nil)
}

// ResetPassword sets a new password with a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	req := users.ResetPasswordRequest{Token: token, Password: password}
	return c.do(ctx, http.MethodPost, "/auth/reset-password", nil, req, nil)
}
