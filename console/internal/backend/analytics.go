package backend

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

const (
	pathTraffic  = "/analytics/traffic"
	pathSummary  = "/analytics/summary"
	pathMyAccess = "/myaccess/"

	DefaultTrafficHours = 24
)

// Traffic returns the time series for one device, or for all of the
// caller's devices when q.DeviceID is zero.
func (c *Client) Traffic(ctx context.Context, q TrafficQuery) (TrafficReport, error) {
	hours := q.Hours
	if hours <= 0 {
		hours = DefaultTrafficHours
	}
	params := url.Values{}
	if q.DeviceID != 0 {
		params.Set("device_id", idParam(q.DeviceID))
	}
	params.Set("hours", strconv.Itoa(hours))

	var raw json.RawMessage
	resp, err := c.request(ctx).SetQueryParamsFromValues(params).Get(pathTraffic)
	if err := decode(resp, err, &raw); err != nil {
		return TrafficReport{}, err
	}
	report, err := normalizeTraffic(raw)
	if err != nil {
		return TrafficReport{}, malformed(resp, err, "traffic")
	}
	return report, nil
}

func (c *Client) TrafficSummary(ctx context.Context, deviceID int64) (TrafficSummary, error) {
	req := c.request(ctx)
	if deviceID != 0 {
		req.SetQueryParam("device_id", idParam(deviceID))
	}
	var raw json.RawMessage
	resp, err := req.Get(pathSummary)
	if err := decode(resp, err, &raw); err != nil {
		return TrafficSummary{}, err
	}
	summary, err := normalizeSummary(raw)
	if err != nil {
		return TrafficSummary{}, malformed(resp, err, "traffic summary")
	}
	return summary, nil
}

// MyAccess returns the caller's self-service access summary.
func (c *Client) MyAccess(ctx context.Context) (AccessSummary, error) {
	var raw json.RawMessage
	resp, err := c.request(ctx).Get(pathMyAccess)
	if err := decode(resp, err, &raw); err != nil {
		return AccessSummary{}, err
	}
	access, err := normalizeAccess(raw)
	if err != nil {
		return AccessSummary{}, malformed(resp, err, "access")
	}
	return access, nil
}
