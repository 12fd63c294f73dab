package backend

import (
	"context"
	"encoding/json"
)

const (
	pathLogin  = "/auth/login"
	pathMe     = "/auth/me"
	pathHealth = "/health/"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates and, on success, stores the access token in the
// client's token holder so later calls carry it.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var w wireIdentity
	resp, err := c.jsonRequest(ctx, &loginRequest{Username: username, Password: password}).
		Post(pathLogin)
	if err := decode(resp, err, &w); err != nil {
		return LoginResult{}, err
	}
	if w.AccessToken == "" {
		return LoginResult{}, &APIError{StatusCode: resp.StatusCode(), Message: "login response carried no access token"}
	}
	c.tokens.Set(w.AccessToken)
	return LoginResult{
		Identity:         w.identity(),
		AccessToken:      w.AccessToken,
		RefreshToken:     w.RefreshToken,
		WireGuardEnabled: w.WireGuardEnabled,
		MaxDevices:       w.MaxDevices,
	}, nil
}

// Me resolves the identity behind the current token.
func (c *Client) Me(ctx context.Context) (Identity, error) {
	var w wireIdentity
	resp, err := c.request(ctx).Get(pathMe)
	if err := decode(resp, err, &w); err != nil {
		return Identity{}, err
	}
	return w.identity(), nil
}

func (c *Client) Health(ctx context.Context) (Ack, error) {
	var raw json.RawMessage
	resp, err := c.request(ctx).Get(pathHealth)
	if err := decode(resp, err, &raw); err != nil {
		return Ack{}, err
	}
	return normalizeAck(raw), nil
}
