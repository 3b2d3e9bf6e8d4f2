package discoveryplugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

type fakeDiscoverer struct {
	result *schema.DatabaseSchema
	err    error
}

func (f *fakeDiscoverer) Discover(req DiscoverRequest) (*schema.DatabaseSchema, error) {
	return f.result, f.err
}

func TestServer_Discover_Success(t *testing.T) {
	want := &schema.DatabaseSchema{Provider: schema.ProviderPostgres, DatabaseName: "appdb"}
	s := &Server{Discoverer: &fakeDiscoverer{result: want}}

	var resp DiscoverRPCResponse
	err := s.Discover(&DiscoverRPCRequest{Req: DiscoverRequest{Language: config.LangGo, Namespace: "public"}}, &resp)

	require.NoError(t, err)
	assert.Nil(t, resp.Error)
	assert.Equal(t, want, resp.Schema)
}

func TestServer_Discover_WrapsDiscovererError(t *testing.T) {
	s := &Server{Discoverer: &fakeDiscoverer{err: errors.New("parse failed")}}

	var resp DiscoverRPCResponse
	err := s.Discover(&DiscoverRPCRequest{Req: DiscoverRequest{Language: config.LangJava}}, &resp)

	require.NoError(t, err) // net/rpc transport error is nil; failures travel in resp.Error
	require.NotNil(t, resp.Error)
	assert.Equal(t, "parse failed", resp.Error.Message)
}
