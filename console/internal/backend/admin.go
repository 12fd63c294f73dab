package backend

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

const (
	pathAdminUsers       = "/admin/users"
	pathAdminUser        = "/admin/users/{username}"
	pathAdminAddUser     = "/admin/add-user"
	pathAdminUserRole    = "/admin/users/{username}/role"
	pathAdminUserEnable  = "/admin/users/{username}/enable"
	pathAdminUserDisable = "/admin/users/{username}/disable"
	pathAdminDevices     = "/admin/devices"
	pathAdminDevice      = "/admin/devices/{id}"

	DefaultDeviceLimit = 100
)

type updateRoleRequest struct {
	Role Role `json:"role"`
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var raw json.RawMessage
	resp, err := c.request(ctx).Get(pathAdminUsers)
	if err := decode(resp, err, &raw); err != nil {
		return nil, err
	}
	users, err := normalizeUsers(raw)
	if err != nil {
		return nil, malformed(resp, err, "users")
	}
	return users, nil
}

func (c *Client) GetUser(ctx context.Context, username string) (UserDetail, error) {
	var raw json.RawMessage
	resp, err := c.request(ctx).SetPathParam("username", username).Get(pathAdminUser)
	if err := decode(resp, err, &raw); err != nil {
		return UserDetail{}, err
	}
	detail, err := normalizeUserDetail(raw)
	if err != nil {
		return UserDetail{}, malformed(resp, err, "user %s", username)
	}
	return detail, nil
}

func (c *Client) CreateUser(ctx context.Context, u NewUser) (Ack, error) {
	if u.Role == "" {
		u.Role = RoleUser
	}
	return c.ack(c.jsonRequest(ctx, &u).Post(pathAdminAddUser))
}

func (c *Client) UpdateUserRole(ctx context.Context, username string, role Role) (Ack, error) {
	return c.ack(c.jsonRequest(ctx, &updateRoleRequest{Role: role}).
		SetPathParam("username", username).
		Put(pathAdminUserRole))
}

func (c *Client) DeleteUser(ctx context.Context, username string) (Ack, error) {
	return c.ack(c.request(ctx).SetPathParam("username", username).Delete(pathAdminUser))
}

func (c *Client) EnableUserVPN(ctx context.Context, username string) (Ack, error) {
	return c.ack(c.request(ctx).SetPathParam("username", username).Post(pathAdminUserEnable))
}

func (c *Client) DisableUserVPN(ctx context.Context, username string) (Ack, error) {
	return c.ack(c.request(ctx).SetPathParam("username", username).Post(pathAdminUserDisable))
}

// ListAdminDevices pages through every user's devices.
func (c *Client) ListAdminDevices(ctx context.Context, f DeviceFilter) (DevicePage, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultDeviceLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	params := url.Values{}
	if f.Status != "" {
		params.Set("status", string(f.Status))
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var raw json.RawMessage
	resp, err := c.request(ctx).SetQueryParamsFromValues(params).Get(pathAdminDevices)
	if err := decode(resp, err, &raw); err != nil {
		return DevicePage{}, err
	}
	devices, total, err := normalizeDevices(raw)
	if err != nil {
		return DevicePage{}, malformed(resp, err, "admin devices")
	}
	return DevicePage{Devices: devices, Total: total}, nil
}

func (c *Client) GetAdminDevice(ctx context.Context, id int64) (Device, error) {
	var raw json.RawMessage
	resp, err := c.request(ctx).SetPathParam("id", idParam(id)).Get(pathAdminDevice)
	if err := decode(resp, err, &raw); err != nil {
		return Device{}, err
	}
	device, err := normalizeDevice(raw)
	if err != nil {
		return Device{}, malformed(resp, err, "admin device %d", id)
	}
	return device, nil
}

func (c *Client) RevokeAdminDevice(ctx context.Context, id int64) (Ack, error) {
	return c.ack(c.request(ctx).SetPathParam("id", idParam(id)).Delete(pathAdminDevice))
}
