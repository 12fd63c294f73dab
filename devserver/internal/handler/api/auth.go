package api

import (
	"context"

	"vpn-console/devserver/internal/service"
)

type LoginInput struct {
	Body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refresh_token"`
	}
}

type SessionBody struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	WireGuardEnabled bool   `json:"wireguard_enabled"`
	MaxDevices       int    `json:"max_devices"`
	IdentityBody
}

type SessionOutput struct {
	Body SessionBody
}

func sessionOutput(s service.Session) *SessionOutput {
	return &SessionOutput{Body: SessionBody{
		AccessToken:      s.AccessToken,
		RefreshToken:     s.RefreshToken,
		TokenType:        "bearer",
		WireGuardEnabled: s.User.WireGuardEnabled,
		MaxDevices:       s.User.MaxDevices,
		IdentityBody:     identityBody(s.User),
	}}
}

type IdentityOutput struct {
	Body IdentityBody
}

type HealthOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func (h *Handler) health(ctx context.Context, input *struct{}) (*HealthOutput, error) {
	resp := &HealthOutput{}
	resp.Body.Status = "healthy"
	return resp, nil
}

func (h *Handler) login(ctx context.Context, input *LoginInput) (*SessionOutput, error) {
	s, err := service.Login(ctx, h.repo, h.tokens, input.Body.Username, input.Body.Password)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	h.log.Info("login", "username", s.User.Username)
	return sessionOutput(s), nil
}

func (h *Handler) refresh(ctx context.Context, input *RefreshInput) (*SessionOutput, error) {
	s, err := service.Refresh(ctx, h.repo, h.tokens, input.Body.RefreshToken)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	return sessionOutput(s), nil
}

func (h *Handler) me(ctx context.Context, input *struct{}) (*IdentityOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	u, err := h.repo.GetUserByUsername(ctx, p.Username)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	return &IdentityOutput{Body: identityBody(u)}, nil
}
