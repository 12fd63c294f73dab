package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vpn-console/devserver/internal/model"
	"vpn-console/devserver/internal/repository"
)

const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var errInvalidCredentials = AuthError{Msg: "invalid credentials"}

// Tokens issues and validates HS256 access tokens.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokens(secret string, accessTTL time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	return &Tokens{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: DefaultRefreshTTL}, nil
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (t *Tokens) issue(u model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) Validate(tokenString string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return Claims{}, AuthError{Msg: "could not validate credentials"}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Claims{}, AuthError{Msg: "could not validate credentials"}
	}
	return *claims, nil
}

type Session struct {
	AccessToken  string
	RefreshToken string
	User         model.User
}

func (t *Tokens) newSession(ctx context.Context, repo repository.Repository, u model.User) (Session, error) {
	access, err := t.issue(u)
	if err != nil {
		return Session{}, err
	}
	refresh := model.NewRefreshToken(u.Username, t.refreshTTL)
	if err := repo.CreateRefreshToken(ctx, &refresh); err != nil {
		return Session{}, err
	}
	return Session{AccessToken: access, RefreshToken: refresh.Token, User: u}, nil
}

func Login(ctx context.Context, repo repository.Repository, tokens *Tokens, username, password string) (Session, error) {
	if username == "" || password == "" {
		return Session{}, errInvalidCredentials
	}
	u, err := repo.GetUserByUsername(ctx, username)
	if err != nil {
		if IsNotFound(err) {
			return Session{}, errInvalidCredentials
		}
		return Session{}, err
	}
	if !u.CheckPassword(password) {
		return Session{}, errInvalidCredentials
	}
	s, err := tokens.newSession(ctx, repo, u)
	if err != nil {
		return Session{}, err
	}
	if err := audit(ctx, repo, ActionLogin, u.Username, u.Username, ""); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Refresh exchanges a refresh token for a new session. The old refresh
// token is consumed.
func Refresh(ctx context.Context, repo repository.Repository, tokens *Tokens, refreshToken string) (Session, error) {
	var s Session
	err := repo.WithTx(ctx, func(tx repository.Repository) error {
		rt, err := tx.ConsumeRefreshToken(ctx, refreshToken)
		if err != nil {
			if IsNotFound(err) {
				return AuthError{Msg: "invalid refresh token"}
			}
			return err
		}
		if time.Now().After(rt.ExpiresAt) {
			return AuthError{Msg: "refresh token expired"}
		}
		u, err := tx.GetUserByUsername(ctx, rt.Username)
		if err != nil {
			if IsNotFound(err) {
				return AuthError{Msg: "invalid refresh token"}
			}
			return err
		}
		s, err = tokens.newSession(ctx, tx, u)
		return err
	})
	return s, err
}

// Principal is the caller resolved from a bearer token. Role is read from
// the database, not the token, so role changes apply immediately.
type Principal struct {
	Username string
	Role     string
}

func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

func Authenticate(ctx context.Context, repo repository.Repository, tokens *Tokens, bearer string) (Principal, error) {
	claims, err := tokens.Validate(bearer)
	if err != nil {
		return Principal{}, err
	}
	u, err := repo.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		if IsNotFound(err) {
			return Principal{}, AuthError{Msg: "could not validate credentials"}
		}
		return Principal{}, err
	}
	return Principal{Username: u.Username, Role: u.Role}, nil
}

type principalKey struct{}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
