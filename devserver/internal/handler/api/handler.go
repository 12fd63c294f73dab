package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"vpn-console/devserver/internal/middleware"
	"vpn-console/devserver/internal/model"
	"vpn-console/devserver/internal/repository"
	"vpn-console/devserver/internal/service"
	"vpn-console/devserver/internal/wireguard"
)

const (
	apiTitle   = "VPN devserver"
	apiVersion = "1.0.0"
)

// PeerSync is a WireGuard interface the active devices are mirrored onto.
type PeerSync interface {
	ApplyPeers(devices []model.Device) error
	Stats() (map[string]wireguard.PeerStats, error)
}

type Handler struct {
	repo    repository.Repository
	tokens  *service.Tokens
	network service.Network
	wg      PeerSync
	log     *slog.Logger
}

func NewHandler(repo repository.Repository, tokens *service.Tokens, network service.Network, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handler{repo: repo, tokens: tokens, network: network, log: log}
}

// WithPeerSync makes device changes update wg and lets the peers endpoint
// report its live counters.
func (h *Handler) WithPeerSync(wg PeerSync) *Handler {
	h.wg = wg
	return h
}

// syncPeers pushes the active devices to the interface. A failure is logged
// and does not fail the request that triggered it.
func (h *Handler) syncPeers(ctx context.Context) {
	if h.wg == nil {
		return
	}
	devices, err := service.Peers(ctx, h.repo)
	if err == nil {
		err = h.wg.ApplyPeers(devices)
	}
	if err != nil {
		h.log.Error("sync wireguard peers", "error", err)
	}
}

// newAPI creates a huma API on one router group. Only the public group
// serves the OpenAPI document.
func newAPI(r chi.Router, docs bool) huma.API {
	cfg := huma.DefaultConfig(apiTitle, apiVersion)
	if !docs {
		cfg.OpenAPIPath = ""
		cfg.DocsPath = ""
		cfg.SchemasPath = ""
	}
	return humachi.New(r, cfg)
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	// Public endpoints
	r.Group(func(r chi.Router) {
		api := newAPI(r, true)
		huma.Register(api, huma.Operation{
			OperationID: "health",
			Method:      http.MethodGet,
			Path:        "/health/",
			Summary:     "Health check",
		}, h.health)
		huma.Register(api, huma.Operation{
			OperationID: "login",
			Method:      http.MethodPost,
			Path:        "/auth/login",
			Summary:     "Log in with username and password",
		}, h.login)
		huma.Register(api, huma.Operation{
			OperationID: "refresh",
			Method:      http.MethodPost,
			Path:        "/auth/refresh",
			Summary:     "Exchange a refresh token",
		}, h.refresh)
	})

	// Any authenticated user
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(h.repo, h.tokens))
		api := newAPI(r, false)
		h.registerUserRoutes(api)
	})

	// Admins only
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(h.repo, h.tokens))
		r.Use(middleware.RequireAdmin)
		api := newAPI(r, false)
		h.registerAdminRoutes(api)
	})
}

func (h *Handler) principal(ctx context.Context) (service.Principal, error) {
	p, ok := service.PrincipalFromContext(ctx)
	if !ok {
		return service.Principal{}, huma.Error401Unauthorized("not authenticated")
	}
	return p, nil
}

func (h *Handler) toHumaError(err error) error {
	switch {
	case service.IsValidation(err):
		return huma.Error400BadRequest(err.Error())
	case service.IsAuth(err):
		return huma.Error401Unauthorized(err.Error())
	case service.IsForbidden(err):
		return huma.Error403Forbidden(err.Error())
	case service.IsNotFound(err):
		return huma.Error404NotFound("not found")
	case service.IsConflict(err):
		return huma.Error409Conflict("already exists")
	}
	h.log.Error("request failed", "error", err)
	return huma.Error500InternalServerError("internal error")
}
