package backend

import (
	"context"
	"encoding/json"
)

const pathPeers = "/peers/"

// Peers lists the WireGuard peers known to the server interface.
func (c *Client) Peers(ctx context.Context) ([]Peer, error) {
	var raw json.RawMessage
	resp, err := c.request(ctx).Get(pathPeers)
	if err := decode(resp, err, &raw); err != nil {
		return nil, err
	}
	peers, err := normalizePeers(raw)
	if err != nil {
		return nil, malformed(resp, err, "peers")
	}
	return peers, nil
}
