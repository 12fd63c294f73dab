// Package backend is the typed gateway to the VPN provisioning REST API.
//
// Every call attaches "Authorization: Bearer <token>" when the shared
// TokenHolder has a token, sends JSON, and returns either the normalized
// entity or an *APIError. Errors carry the backend's "detail" (or "message",
// or "error") text, falling back to the HTTP status line. Calls are single
// attempts; the gateway knows nothing about loading state or retries.
package backend
