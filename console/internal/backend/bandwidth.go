package backend

import (
	"context"
	"encoding/json"
)

const (
	pathBandwidthLimits = "/admin/bandwidth/limits"
	pathBandwidthReset  = "/admin/bandwidth/limits/{username}/reset"
)

type setLimitRequest struct {
	LDAPUID string  `json:"ldap_uid"`
	LimitMB float64 `json:"limit_mb"`
}

func (c *Client) BandwidthLimits(ctx context.Context) ([]BandwidthLimit, error) {
	var raw json.RawMessage
	resp, err := c.request(ctx).Get(pathBandwidthLimits)
	if err := decode(resp, err, &raw); err != nil {
		return nil, err
	}
	limits, err := normalizeLimits(raw)
	if err != nil {
		return nil, malformed(resp, err, "bandwidth limits")
	}
	return limits, nil
}

// SetBandwidthLimit caps username at limitMB megabytes. Zero removes the cap.
func (c *Client) SetBandwidthLimit(ctx context.Context, username string, limitMB float64) (Ack, error) {
	return c.ack(c.jsonRequest(ctx, &setLimitRequest{LDAPUID: username, LimitMB: limitMB}).
		Post(pathBandwidthLimits))
}

// ResetBandwidthUsage zeroes the used counter for username.
func (c *Client) ResetBandwidthUsage(ctx context.Context, username string) (Ack, error) {
	return c.ack(c.request(ctx).SetPathParam("username", username).Post(pathBandwidthReset))
}
