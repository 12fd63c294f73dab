package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"vpn-console/devserver/internal/repository"
	"vpn-console/devserver/internal/service"
)

type UsernameInput struct {
	Username string `path:"username"`
}

type UserListOutput struct {
	Body struct {
		Users []UserBody `json:"users"`
	}
}

type UserDetailOutput struct {
	Body UserDetailBody
}

type AddUserInput struct {
	Body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role,omitempty"`
	}
}

type UpdateRoleInput struct {
	Username string `path:"username"`
	Body     struct {
		Role string `json:"role"`
	}
}

type AdminDevicesInput struct {
	Status string `query:"status"`
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"1000"`
	Offset int    `query:"offset" minimum:"0"`
}

type TrafficReportInput struct {
	Body struct {
		DeviceID  int64     `json:"device_id"`
		RxBytes   int64     `json:"rx_bytes"`
		TxBytes   int64     `json:"tx_bytes"`
		Timestamp time.Time `json:"timestamp,omitempty"`
	}
}

func (h *Handler) registerAdminRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-list-users",
		Method:      http.MethodGet,
		Path:        "/admin/users",
		Summary:     "List users",
	}, h.adminListUsers)
	huma.Register(api, huma.Operation{
		OperationID: "admin-get-user",
		Method:      http.MethodGet,
		Path:        "/admin/users/{username}",
		Summary:     "Get a user",
	}, h.adminGetUser)
	huma.Register(api, huma.Operation{
		OperationID:   "admin-add-user",
		Method:        http.MethodPost,
		Path:          "/admin/add-user",
		Summary:       "Create a user",
		DefaultStatus: http.StatusCreated,
	}, h.adminAddUser)
	huma.Register(api, huma.Operation{
		OperationID: "admin-update-role",
		Method:      http.MethodPut,
		Path:        "/admin/users/{username}/role",
		Summary:     "Change a user's role",
	}, h.adminUpdateRole)
	huma.Register(api, huma.Operation{
		OperationID: "admin-delete-user",
		Method:      http.MethodDelete,
		Path:        "/admin/users/{username}",
		Summary:     "Delete a user and their devices",
	}, h.adminDeleteUser)
	huma.Register(api, huma.Operation{
		OperationID: "admin-enable-user",
		Method:      http.MethodPost,
		Path:        "/admin/users/{username}/enable",
		Summary:     "Enable a user's VPN access",
	}, h.adminSetVPNAccess(true))
	huma.Register(api, huma.Operation{
		OperationID: "admin-disable-user",
		Method:      http.MethodPost,
		Path:        "/admin/users/{username}/disable",
		Summary:     "Disable a user's VPN access",
	}, h.adminSetVPNAccess(false))

	huma.Register(api, huma.Operation{
		OperationID: "admin-list-devices",
		Method:      http.MethodGet,
		Path:        "/admin/devices",
		Summary:     "List every user's devices",
	}, h.adminListDevices)
	huma.Register(api, huma.Operation{
		OperationID: "admin-get-device",
		Method:      http.MethodGet,
		Path:        "/admin/devices/{id}",
		Summary:     "Get any device",
	}, h.getDevice)
	huma.Register(api, huma.Operation{
		OperationID: "admin-revoke-device",
		Method:      http.MethodDelete,
		Path:        "/admin/devices/{id}",
		Summary:     "Revoke any device",
	}, h.revokeDevice)

	h.registerMonitoringRoutes(api)

	huma.Register(api, huma.Operation{
		OperationID: "dev-report-traffic",
		Method:      http.MethodPost,
		Path:        "/dev/traffic",
		Summary:     "Record a transfer report for a device",
	}, h.reportTraffic)
}

func (h *Handler) adminListUsers(ctx context.Context, input *struct{}) (*UserListOutput, error) {
	users, err := service.ListUsers(ctx, h.repo)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	resp := &UserListOutput{}
	resp.Body.Users = make([]UserBody, 0, len(users))
	for _, u := range users {
		resp.Body.Users = append(resp.Body.Users, userBody(u))
	}
	return resp, nil
}

func (h *Handler) adminGetUser(ctx context.Context, input *UsernameInput) (*UserDetailOutput, error) {
	u, err := service.GetUser(ctx, h.repo, input.Username)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	return &UserDetailOutput{Body: userDetailBody(u)}, nil
}

func (h *Handler) adminAddUser(ctx context.Context, input *AddUserInput) (*AckOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	u, err := service.CreateUser(ctx, h.repo, p.Username, input.Body.Username, input.Body.Password, input.Body.Role)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	h.log.Info("user created", "username", u.Username, "role", u.Role, "by", p.Username)
	return ack(fmt.Sprintf("user %s created", u.Username)), nil
}

func (h *Handler) adminUpdateRole(ctx context.Context, input *UpdateRoleInput) (*AckOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := service.UpdateUserRole(ctx, h.repo, p.Username, input.Username, input.Body.Role); err != nil {
		return nil, h.toHumaError(err)
	}
	return ack(fmt.Sprintf("role of %s set to %s", input.Username, input.Body.Role)), nil
}

func (h *Handler) adminDeleteUser(ctx context.Context, input *UsernameInput) (*AckOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := service.DeleteUser(ctx, h.repo, p.Username, input.Username); err != nil {
		return nil, h.toHumaError(err)
	}
	h.log.Info("user deleted", "username", input.Username, "by", p.Username)
	h.syncPeers(ctx)
	return ack(fmt.Sprintf("user %s deleted", input.Username)), nil
}

func (h *Handler) adminSetVPNAccess(enabled bool) func(context.Context, *UsernameInput) (*AckOutput, error) {
	return func(ctx context.Context, input *UsernameInput) (*AckOutput, error) {
		p, err := h.principal(ctx)
		if err != nil {
			return nil, err
		}
		if err := service.SetVPNAccess(ctx, h.repo, p.Username, input.Username, enabled); err != nil {
			return nil, h.toHumaError(err)
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		return ack(fmt.Sprintf("VPN access %s for %s", state, input.Username)), nil
	}
}

func (h *Handler) adminListDevices(ctx context.Context, input *AdminDevicesInput) (*DeviceListOutput, error) {
	devices, total, err := service.ListAllDevices(ctx, h.repo, repository.DeviceFilter{
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, h.toHumaError(err)
	}
	resp := &DeviceListOutput{}
	resp.Body.Devices = deviceBodies(devices)
	resp.Body.Count = len(devices)
	resp.Body.Total = total
	return resp, nil
}

func (h *Handler) reportTraffic(ctx context.Context, input *TrafficReportInput) (*AckOutput, error) {
	b := input.Body
	if err := service.RecordTraffic(ctx, h.repo, b.DeviceID, b.RxBytes, b.TxBytes, b.Timestamp); err != nil {
		return nil, h.toHumaError(err)
	}
	return ack(fmt.Sprintf("recorded %d bytes for device %d", b.RxBytes+b.TxBytes, b.DeviceID)), nil
}
