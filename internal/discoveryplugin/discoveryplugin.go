// Package discoveryplugin is the out-of-process transport for the
// EntityDiscoverer collaborator: code-entity discovery from compiled
// artifacts is a pluggable interface producing a typed entity list, so
// the core never reflects on its own types. It builds a small
// hashicorp/go-plugin handshake/dispense pair around net/rpc, with one
// Discover call returning a DatabaseSchema-equivalent target schema.
package discoveryplugin

import (
	"net/rpc"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

// Handshake is the magic-cookie handshake every entity-discoverer plugin
// binary and this process must agree on.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "SCHEMADEPLOY_DISCOVERER_PLUGIN",
	MagicCookieValue: "schemadeploy-entity-discoverer",
}

// EntityDiscoverer is the external collaborator's contract: given the
// configured language and a source path, produce a DatabaseSchema-
// equivalent target schema. Implementations walk compiled
// artifacts/annotated code entities for one language; the core never
// inspects that process.
type EntityDiscoverer interface {
	Discover(req DiscoverRequest) (*schema.DatabaseSchema, error)
}

// DiscoverRequest carries everything a discoverer plugin needs to locate
// and parse the target language's annotated entities.
type DiscoverRequest struct {
	Language     config.Language
	SourcePath   string
	Namespace    string
	ProviderHint schema.Provider
}

// RPCError mirrors rpc.RPCError: net/rpc can't transport Go error values
// across the wire, so failures travel as a plain message field instead.
type RPCError struct {
	Message string
}

func (e *RPCError) Error() string { return e.Message }

func wrapErr(err error) *RPCError {
	if err == nil {
		return nil
	}
	return &RPCError{Message: err.Error()}
}

// DiscoverRPCRequest/DiscoverRPCResponse are the net/rpc wire types for
// the single Discover call.
type DiscoverRPCRequest struct {
	Req DiscoverRequest
}

type DiscoverRPCResponse struct {
	Schema *schema.DatabaseSchema
	Error  *RPCError
}

// Plugin implements hashicorp/go-plugin's Plugin interface for the
// EntityDiscoverer contract.
type Plugin struct {
	Discoverer EntityDiscoverer // set on the plugin-server side
	Logger     hclog.Logger
}

// Server returns the net/rpc server exposed to the host process.
func (p *Plugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &Server{Discoverer: p.Discoverer, Logger: p.Logger}, nil
}

// Client returns the net/rpc client the host process drives.
func (p *Plugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &Client{rpcClient: c}, nil
}

// PluginMap is the single-entry plugin map both Serve and Connect use.
func PluginMap(p *Plugin) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{"discoverer": p}
}
