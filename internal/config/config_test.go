package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schemabounce/schemadeploy/internal/schema"
)

func TestNormalize_FillsDefaults(t *testing.T) {
	c := &Config{Provider: schema.ProviderPostgres}
	c.Normalize()

	assert.Equal(t, 30, c.ConnectionTimeoutSec)
	assert.Equal(t, 300, c.CommandTimeoutSec)
	assert.Equal(t, 3, c.RetryAttempts)
	assert.Equal(t, 2, c.RetryIntervalSec)
	assert.Equal(t, ValidationNormal, c.ValidationLevel)
	assert.Equal(t, "public", c.Connection.SchemaNamespace)
}

func TestNormalize_DoesNotOverrideExplicitValues(t *testing.T) {
	c := &Config{
		Provider:             schema.ProviderMySQL,
		ConnectionTimeoutSec: 5,
		RetryAttempts:        1,
	}
	c.Normalize()

	assert.Equal(t, 5, c.ConnectionTimeoutSec)
	assert.Equal(t, 1, c.RetryAttempts)
}

func TestNormalize_BypassApproval(t *testing.T) {
	dev := &Config{Provider: schema.ProviderPostgres, Env: EnvDev}
	dev.Normalize()
	assert.True(t, dev.BypassApproval)

	prod := &Config{Provider: schema.ProviderPostgres, Env: EnvProd, Mode: ModeExecute}
	prod.Normalize()
	assert.False(t, prod.BypassApproval)

	validate := &Config{Provider: schema.ProviderPostgres, Env: EnvProd, Mode: ModeValidate}
	validate.Normalize()
	assert.True(t, validate.BypassApproval)

	noop := &Config{Provider: schema.ProviderPostgres, Env: EnvProd, Mode: ModeExecute, NoOp: true}
	noop.Normalize()
	assert.True(t, noop.BypassApproval)
}

func TestDefaultNamespace_PerProvider(t *testing.T) {
	cases := []struct {
		provider schema.Provider
		conn     Connection
		want     string
	}{
		{schema.ProviderSQLServer, Connection{}, "dbo"},
		{schema.ProviderPostgres, Connection{}, "public"},
		{schema.ProviderMySQL, Connection{Database: "appdb"}, "appdb"},
		{schema.ProviderOracle, Connection{Username: "app_user"}, "APP_USER"},
		{schema.ProviderSQLite, Connection{}, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, defaultNamespace(tc.provider, tc.conn))
	}
}

func TestDefaultPort_PerProvider(t *testing.T) {
	assert.Equal(t, 1433, DefaultPort(schema.ProviderSQLServer))
	assert.Equal(t, 5432, DefaultPort(schema.ProviderPostgres))
	assert.Equal(t, 3306, DefaultPort(schema.ProviderMySQL))
	assert.Equal(t, 1521, DefaultPort(schema.ProviderOracle))
	assert.Equal(t, 0, DefaultPort(schema.ProviderSQLite))
}

func TestDurationHelpers(t *testing.T) {
	c := &Config{CommandTimeoutSec: 10, ConnectionTimeoutSec: 5, RetryIntervalSec: 2}
	assert.Equal(t, 10*time.Second, c.CommandTimeout())
	assert.Equal(t, 5*time.Second, c.ConnectionTimeout())
	assert.Equal(t, 2*time.Second, c.RetryInterval())
}
