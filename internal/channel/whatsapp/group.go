package whatsapp

import (
	"context"
	"fmt"
	"time"

	"go.mau.fi/whatsmeow/types"
)

const groupInfoTimeout = 10 * time.Second

// groupInfo looks up group metadata. Newer whatsmeow releases take a
// context on GetGroupInfo, older ones do not.
func (c *Client) groupInfo(jid types.JID) (*types.GroupInfo, error) {
	var client any = c.client
	switch g := client.(type) {
	case interface {
		GetGroupInfo(context.Context, types.JID) (*types.GroupInfo, error)
	}:
		ctx, cancel := context.WithTimeout(context.Background(), groupInfoTimeout)
		defer cancel()
		return g.GetGroupInfo(ctx, jid)
	case interface {
		GetGroupInfo(types.JID) (*types.GroupInfo, error)
	}:
		return g.GetGroupInfo(jid)
	}
	return nil, fmt.Errorf("group info lookup unsupported")
}
