package backend

import "sync"

// TokenHolder is the bearer token shared between a Client and its owner.
// The session store owns the holder; the client only reads it, except that a
// successful Login stores the token it received.
type TokenHolder struct {
	mu    sync.RWMutex
	token string
}

func NewTokenHolder(token string) *TokenHolder {
	return &TokenHolder{token: token}
}

func (h *TokenHolder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *TokenHolder) Set(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

func (h *TokenHolder) Clear() {
	h.Set("")
}
