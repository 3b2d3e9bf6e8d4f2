package discoveryplugin

import "github.com/hashicorp/go-hclog"

// Server is the net/rpc server side: it adapts an in-process
// EntityDiscoverer to the wire contract (grounded on rpc/server.go's
// ProviderServer).
type Server struct {
	Discoverer EntityDiscoverer
	Logger     hclog.Logger
}

// Discover handles the Discoverer.Discover net/rpc call.
func (s *Server) Discover(req *DiscoverRPCRequest, resp *DiscoverRPCResponse) error {
	if s.Logger != nil {
		s.Logger.Debug("Discover called", "language", req.Req.Language, "source_path", req.Req.SourcePath)
	}

	result, err := s.Discoverer.Discover(req.Req)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("Discover failed", "error", err)
		}
		resp.Error = wrapErr(err)
		return nil
	}

	resp.Schema = result
	return nil
}
