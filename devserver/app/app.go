// Package app assembles the development backend: a sqlite-backed HTTP API
// that speaks the same wire contract as the production VPN management
// service, for local use and for end-to-end tests of the console.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	apiHandler "vpn-console/devserver/internal/handler/api"
	"vpn-console/devserver/internal/infra"
	"vpn-console/devserver/internal/repository"
	"vpn-console/devserver/internal/service"
	"vpn-console/devserver/internal/wireguard"
)

const (
	defaultAddr      = ":8000"
	defaultDBPath    = "devserver.db"
	defaultSubnet    = "10.8.0.0/24"
	defaultEndpoint  = "vpn.example.com:51820"
	defaultAccessTTL = 30 * time.Minute
)

type Config struct {
	Addr             string
	DBPath           string
	JWTSecret        string
	AccessTTL        time.Duration
	AdminUser        string
	AdminPass        string
	Subnet           string
	Endpoint         string
	ServerPrivateKey string
	// WGInterface, when set, names the WireGuard interface the active
	// devices are mirrored onto. With WGSetup the interface is created and
	// configured with the server key; otherwise it must already exist.
	WGInterface     string
	WGSetup         bool
	CollectInterval time.Duration
}

// LoadConfig reads DEVSERVER_* variables and JWT_SECRET.
func LoadConfig() (Config, error) {
	var problems []string
	cfg := Config{
		Addr:             envOr("DEVSERVER_ADDR", defaultAddr),
		DBPath:           envOr("DEVSERVER_DB_PATH", defaultDBPath),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AccessTTL:        defaultAccessTTL,
		AdminUser:        os.Getenv("DEVSERVER_ADMIN_USER"),
		AdminPass:        os.Getenv("DEVSERVER_ADMIN_PASS"),
		Subnet:           envOr("DEVSERVER_VPN_SUBNET", defaultSubnet),
		Endpoint:         envOr("DEVSERVER_ENDPOINT", defaultEndpoint),
		ServerPrivateKey: os.Getenv("DEVSERVER_SERVER_PRIVATE_KEY"),
		WGInterface:      strings.TrimSpace(os.Getenv("DEVSERVER_WG_INTERFACE")),
	}
	if v := os.Getenv("DEVSERVER_WG_SETUP"); v != "" {
		setup, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, "DEVSERVER_WG_SETUP must be a boolean")
		}
		cfg.WGSetup = setup
	}

	if v := os.Getenv("DEVSERVER_COLLECT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			problems = append(problems, "DEVSERVER_COLLECT_INTERVAL must be a positive duration")
		} else {
			cfg.CollectInterval = d
		}
	}
	if v := os.Getenv("DEVSERVER_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			problems = append(problems, "DEVSERVER_ACCESS_TTL must be a positive duration")
		} else {
			cfg.AccessTTL = d
		}
	}
	if cfg.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if cfg.AdminUser == "" || cfg.AdminPass == "" {
		problems = append(problems, "DEVSERVER_ADMIN_USER and DEVSERVER_ADMIN_PASS are required")
	}
	if len(problems) > 0 {
		return Config{}, errors.New(strings.Join(problems, "; "))
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

type Server struct {
	db        *gorm.DB
	router    chi.Router
	collector *wireguard.Collector
	Network   service.Network
}

// New opens the database, seeds the admin account and builds the router.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}

	network, err := service.ParseNetwork(cfg.Subnet, cfg.Endpoint, cfg.ServerPrivateKey)
	if err != nil {
		return nil, err
	}
	tokens, err := service.NewTokens(cfg.JWTSecret, cfg.AccessTTL)
	if err != nil {
		return nil, err
	}

	db, err := infra.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	repo := repository.NewGormRepository(db)

	created, err := service.SeedAdmin(ctx, repo, cfg.AdminUser, cfg.AdminPass)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.Info("admin account created", "username", cfg.AdminUser)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimw.Recoverer)

	srv := &Server{Network: network}
	h := apiHandler.NewHandler(repo, tokens, network, log)
	if cfg.WGInterface != "" {
		wg, err := openWireGuard(cfg, network)
		if err != nil {
			closeDB(db)
			return nil, err
		}
		h.WithPeerSync(wg)
		peers, err := service.Peers(ctx, repo)
		if err == nil {
			err = wg.ApplyPeers(peers)
		}
		if err != nil {
			closeDB(db)
			return nil, fmt.Errorf("sync wireguard peers: %w", err)
		}
		log.Info("mirroring devices onto wireguard interface", "interface", wg.Name(), "peers", len(peers))

		srv.collector = &wireguard.Collector{
			Source:   wg,
			Interval: cfg.CollectInterval,
			Log:      log.With("component", "collector"),
			OnDelta: func(ctx context.Context, publicKey string, rx, tx int64, at time.Time) error {
				return service.RecordPeerTraffic(ctx, repo, publicKey, rx, tx, at)
			},
		}
	}
	h.RegisterRoutes(r)

	srv.db, srv.router = db, r
	return srv, nil
}

// CollectTraffic records peer transfer from the WireGuard interface until
// ctx is done. It returns at once when no interface is configured.
func (s *Server) CollectTraffic(ctx context.Context) error {
	if s.collector == nil {
		return nil
	}
	return s.collector.Run(ctx)
}

func openWireGuard(cfg Config, network service.Network) (*wireguard.Interface, error) {
	if cfg.WGSetup {
		return wireguard.Setup(cfg.WGInterface, network.ServerAddress(), network.ServerPrivateKey, network.ListenPort())
	}
	return wireguard.Open(cfg.WGInterface)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Close() error {
	return closeDB(s.db)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// requestLogger replaces chi's Logger with one that writes through slog.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
