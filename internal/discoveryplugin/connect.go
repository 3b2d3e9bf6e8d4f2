package discoveryplugin

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

// Connect launches the entity-discoverer binary for language and returns
// a client plus its go-plugin handle (which the caller must Kill when
// done). Grounded on rpc/discovery.go's Client.Connect.
func Connect(binaryPath string, logger hclog.Logger) (EntityDiscoverer, *plugin.Client, error) {
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{Name: "schemadeploy-discoverer-client", Level: hclog.Info, Output: os.Stderr})
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginMap(&Plugin{Logger: logger}),
		Cmd:             exec.Command(binaryPath),
		Logger:          logger,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to connect to discoverer plugin: %w", err)
	}

	raw, err := rpcClient.Dispense("discoverer")
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to dispense discoverer: %w", err)
	}

	discoverer, ok := raw.(EntityDiscoverer)
	if !ok {
		client.Kill()
		return nil, nil, fmt.Errorf("plugin %s does not implement EntityDiscoverer", binaryPath)
	}
	return discoverer, client, nil
}

// Serve runs discoverer as a long-lived plugin process, the entry point
// a language-specific discoverer binary calls from its own main().
// Grounded on rpc/serve.go's ServeProvider.
func Serve(discoverer EntityDiscoverer, debug bool) {
	level := hclog.Info
	if debug {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{Name: "schemadeploy-discoverer", Level: level})

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginMap(&Plugin{Discoverer: discoverer, Logger: logger}),
		GRPCServer:      plugin.DefaultGRPCServer,
		Logger:          logger,
	})
}
