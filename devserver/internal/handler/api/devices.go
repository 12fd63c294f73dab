package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"vpn-console/devserver/internal/service"
)

type DeviceIDInput struct {
	ID int64 `path:"id" minimum:"1"`
}

type DeviceListOutput struct {
	Body struct {
		Devices []DeviceBody `json:"devices"`
		Count   int          `json:"count"`
		Total   int64        `json:"total"`
	}
}

type DeviceOutput struct {
	Body DeviceBody
}

type AddDeviceInput struct {
	Body struct {
		DeviceName string `json:"device_name" maxLength:"64"`
	}
}

type ProvisionedOutput struct {
	Body ProvisionedBody
}

type ArtifactOutput struct {
	Body ArtifactBody
}

func (h *Handler) registerUserRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Current identity",
	}, h.me)

	huma.Register(api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/devices/",
		Summary:     "List the caller's devices",
	}, h.listDevices)
	huma.Register(api, huma.Operation{
		OperationID:   "add-device",
		Method:        http.MethodPost,
		Path:          "/devices/add",
		Summary:       "Register a device",
		DefaultStatus: http.StatusCreated,
	}, h.addDevice)
	huma.Register(api, huma.Operation{
		OperationID: "get-device",
		Method:      http.MethodGet,
		Path:        "/devices/{id}",
		Summary:     "Get a device",
	}, h.getDevice)
	huma.Register(api, huma.Operation{
		OperationID: "revoke-device",
		Method:      http.MethodDelete,
		Path:        "/devices/{id}",
		Summary:     "Revoke a device",
	}, h.revokeDevice)
	huma.Register(api, huma.Operation{
		OperationID: "device-qr",
		Method:      http.MethodGet,
		Path:        "/devices/{id}/qr",
		Summary:     "Get a device's QR code",
	}, h.deviceArtifact)
	huma.Register(api, huma.Operation{
		OperationID: "device-config",
		Method:      http.MethodGet,
		Path:        "/devices/{id}/config",
		Summary:     "Get a device's WireGuard config",
	}, h.deviceArtifact)
	huma.Register(api, huma.Operation{
		OperationID: "regenerate-qr",
		Method:      http.MethodPost,
		Path:        "/devices/{id}/regenerate-qr",
		Summary:     "Rotate a device's keys and reissue its QR code",
	}, h.regenerateQR)

	huma.Register(api, huma.Operation{
		OperationID: "traffic",
		Method:      http.MethodGet,
		Path:        "/analytics/traffic",
		Summary:     "Hourly traffic",
	}, h.traffic)
	huma.Register(api, huma.Operation{
		OperationID: "summary",
		Method:      http.MethodGet,
		Path:        "/analytics/summary",
		Summary:     "Traffic totals",
	}, h.summary)
	huma.Register(api, huma.Operation{
		OperationID: "my-access",
		Method:      http.MethodGet,
		Path:        "/myaccess/",
		Summary:     "VPN access and device quota",
	}, h.myAccess)
	huma.Register(api, huma.Operation{
		OperationID: "peers",
		Method:      http.MethodGet,
		Path:        "/peers/",
		Summary:     "WireGuard peers",
	}, h.peers)
}

func (h *Handler) listDevices(ctx context.Context, input *struct{}) (*DeviceListOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	devices, err := service.ListDevices(ctx, h.repo, p.Username)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	resp := &DeviceListOutput{}
	resp.Body.Devices = deviceBodies(devices)
	resp.Body.Count = len(devices)
	resp.Body.Total = int64(len(devices))
	return resp, nil
}

func provisionedOutput(p service.Provisioned, msg string) *ProvisionedOutput {
	return &ProvisionedOutput{Body: ProvisionedBody{
		DeviceBody:   deviceBody(p.Device),
		ArtifactBody: ArtifactBody{Config: p.Config, QRCode: p.QRCode},
		Message:      msg,
	}}
}

func (h *Handler) addDevice(ctx context.Context, input *AddDeviceInput) (*ProvisionedOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	added, err := service.AddDevice(ctx, h.repo, h.network, p.Username, input.Body.DeviceName)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	h.log.Info("device added", "owner", p.Username, "id", added.Device.ID, "address", added.Device.Address)
	h.syncPeers(ctx)
	return provisionedOutput(added, fmt.Sprintf("device %s added", added.Device.Name)), nil
}

func (h *Handler) getDevice(ctx context.Context, input *DeviceIDInput) (*DeviceOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	d, err := service.GetDevice(ctx, h.repo, p, input.ID)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	return &DeviceOutput{Body: deviceBody(d)}, nil
}

func (h *Handler) revokeDevice(ctx context.Context, input *DeviceIDInput) (*AckOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := service.RevokeDevice(ctx, h.repo, p, input.ID); err != nil {
		return nil, h.toHumaError(err)
	}
	h.syncPeers(ctx)
	return ack(fmt.Sprintf("device %d revoked", input.ID)), nil
}

func (h *Handler) deviceArtifact(ctx context.Context, input *DeviceIDInput) (*ArtifactOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := service.DeviceConfig(ctx, h.repo, h.network, p, input.ID)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	return &ArtifactOutput{Body: ArtifactBody{Config: cfg.Config, QRCode: cfg.QRCode}}, nil
}

func (h *Handler) regenerateQR(ctx context.Context, input *DeviceIDInput) (*ArtifactOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := service.RotateDeviceKeys(ctx, h.repo, h.network, p, input.ID)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	h.log.Info("device keys rotated", "id", input.ID, "by", p.Username)
	h.syncPeers(ctx)
	return &ArtifactOutput{Body: ArtifactBody{Config: cfg.Config, QRCode: cfg.QRCode}}, nil
}
