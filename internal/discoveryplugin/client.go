package discoveryplugin

import (
	"fmt"
	"net/rpc"

	"github.com/schemabounce/schemadeploy/internal/schema"
)

// Client implements EntityDiscoverer as a net/rpc client dispatching to a
// connected plugin process (grounded on rpc/client.go's ProviderClient).
type Client struct {
	rpcClient *rpc.Client
}

// Discover calls the plugin's Discover method via RPC.
func (c *Client) Discover(req DiscoverRequest) (*schema.DatabaseSchema, error) {
	rpcReq := &DiscoverRPCRequest{Req: req}
	var resp DiscoverRPCResponse

	if err := c.rpcClient.Call("Discoverer.Discover", rpcReq, &resp); err != nil {
		return nil, fmt.Errorf("discoverer RPC call failed: %w", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Schema, nil
}
