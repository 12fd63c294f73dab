package api

import (
	"context"

	"vpn-console/devserver/internal/service"
	"vpn-console/devserver/internal/wireguard"
)

type TrafficInput struct {
	DeviceID int64 `query:"device_id" minimum:"0"`
	Hours    int   `query:"hours" default:"24"`
}

type TrafficOutput struct {
	Body struct {
		Data    []TrafficPointBody `json:"data"`
		Summary SummaryBody        `json:"summary"`
	}
}

type SummaryInput struct {
	DeviceID int64 `query:"device_id" minimum:"0"`
}

type SummaryOutput struct {
	Body SummaryBody
}

type AccessOutput struct {
	Body struct {
		Username         string       `json:"username"`
		WireGuardEnabled bool         `json:"wireguard_enabled"`
		MaxDevices       int          `json:"max_devices"`
		DeviceCount      int          `json:"device_count"`
		Devices          []DeviceBody `json:"devices"`
	}
}

type PeersOutput struct {
	Body struct {
		Peers []PeerBody `json:"peers"`
	}
}

func (h *Handler) traffic(ctx context.Context, input *TrafficInput) (*TrafficOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	if input.DeviceID != 0 {
		// Existence and ownership check.
		if _, err := service.GetDevice(ctx, h.repo, p, input.DeviceID); err != nil {
			return nil, h.toHumaError(err)
		}
	}
	points, summary, err := service.Traffic(ctx, h.repo, p.Username, input.DeviceID, input.Hours)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	resp := &TrafficOutput{}
	resp.Body.Data = make([]TrafficPointBody, 0, len(points))
	for _, pt := range points {
		resp.Body.Data = append(resp.Body.Data, TrafficPointBody{Timestamp: pt.Time, TransferTotal: pt.Bytes})
	}
	resp.Body.Summary = summaryBody(summary)
	return resp, nil
}

func (h *Handler) summary(ctx context.Context, input *SummaryInput) (*SummaryOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	s, err := service.Summary(ctx, h.repo, p, input.DeviceID)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	return &SummaryOutput{Body: summaryBody(s)}, nil
}

func (h *Handler) myAccess(ctx context.Context, input *struct{}) (*AccessOutput, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	a, err := service.MyAccess(ctx, h.repo, p.Username)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	resp := &AccessOutput{}
	resp.Body.Username = a.User.Username
	resp.Body.WireGuardEnabled = a.User.WireGuardEnabled
	resp.Body.MaxDevices = a.User.MaxDevices
	resp.Body.DeviceCount = a.DeviceCount
	resp.Body.Devices = deviceBodies(a.Devices)
	return resp, nil
}

func (h *Handler) peers(ctx context.Context, input *struct{}) (*PeersOutput, error) {
	devices, err := service.Peers(ctx, h.repo)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	var live map[string]wireguard.PeerStats
	if h.wg != nil {
		if live, err = h.wg.Stats(); err != nil {
			h.log.Warn("read wireguard peers", "error", err)
		}
	}

	resp := &PeersOutput{}
	resp.Body.Peers = make([]PeerBody, 0, len(devices))
	for _, d := range devices {
		body := peerBody(d)
		if st, ok := live[d.PublicKey]; ok {
			body.TransferRx, body.TransferTx = st.RxBytes, st.TxBytes
			if !st.LastHandshake.IsZero() {
				body.LastHandshake = st.LastHandshake.UTC()
			}
		}
		resp.Body.Peers = append(resp.Body.Peers, body)
	}
	return resp, nil
}
