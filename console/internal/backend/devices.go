package backend

import (
	"context"
	"encoding/json"
	"strconv"
)

const (
	pathDevices      = "/devices/"
	pathDeviceAdd    = "/devices/add"
	pathDevice       = "/devices/{id}"
	pathDeviceQR     = "/devices/{id}/qr"
	pathDeviceConfig = "/devices/{id}/config"
	pathDeviceRegen  = "/devices/{id}/regenerate-qr"
)

type addDeviceRequest struct {
	DeviceName string `json:"device_name"`
}

func idParam(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ListDevices returns the caller's own devices.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var raw json.RawMessage
	resp, err := c.request(ctx).Get(pathDevices)
	if err := decode(resp, err, &raw); err != nil {
		return nil, err
	}
	devices, _, err := normalizeDevices(raw)
	if err != nil {
		return nil, malformed(resp, err, "devices")
	}
	return devices, nil
}

func (c *Client) AddDevice(ctx context.Context, name string) (AddedDevice, error) {
	var raw json.RawMessage
	resp, err := c.jsonRequest(ctx, &addDeviceRequest{DeviceName: name}).Post(pathDeviceAdd)
	if err := decode(resp, err, &raw); err != nil {
		return AddedDevice{}, err
	}
	added, err := normalizeAddedDevice(raw)
	if err != nil {
		return AddedDevice{}, malformed(resp, err, "add device")
	}
	return added, nil
}

func (c *Client) GetDevice(ctx context.Context, id int64) (Device, error) {
	var raw json.RawMessage
	resp, err := c.request(ctx).SetPathParam("id", idParam(id)).Get(pathDevice)
	if err := decode(resp, err, &raw); err != nil {
		return Device{}, err
	}
	device, err := normalizeDevice(raw)
	if err != nil {
		return Device{}, malformed(resp, err, "device %d", id)
	}
	return device, nil
}

func (c *Client) RevokeDevice(ctx context.Context, id int64) (Ack, error) {
	var raw json.RawMessage
	resp, err := c.request(ctx).SetPathParam("id", idParam(id)).Delete(pathDevice)
	if err := decode(resp, err, &raw); err != nil {
		return Ack{}, err
	}
	return normalizeAck(raw), nil
}

func (c *Client) DeviceQR(ctx context.Context, id int64) (Artifact, error) {
	return c.artifact(ctx, "GET", pathDeviceQR, id)
}

func (c *Client) DeviceConfig(ctx context.Context, id int64) (Artifact, error) {
	return c.artifact(ctx, "GET", pathDeviceConfig, id)
}

// RegenerateQR asks the backend to issue a fresh QR image for the device.
func (c *Client) RegenerateQR(ctx context.Context, id int64) (Artifact, error) {
	return c.artifact(ctx, "POST", pathDeviceRegen, id)
}

func (c *Client) artifact(ctx context.Context, method, path string, id int64) (Artifact, error) {
	var raw json.RawMessage
	resp, err := c.request(ctx).SetPathParam("id", idParam(id)).Execute(method, path)
	if err := decode(resp, err, &raw); err != nil {
		return Artifact{}, err
	}
	art, err := normalizeArtifact(raw)
	if err != nil {
		return Artifact{}, malformed(resp, err, "device %d artifact", id)
	}
	return art, nil
}
