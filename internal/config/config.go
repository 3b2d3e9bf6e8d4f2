// Package config models the engine's external configuration surface
// (spec.md §6): connection settings, timeouts/retries, operation mode,
// environment, and backup settings. Plain value types, no global mutable
// state; defaults are applied once by Normalize.
package config

import (
	"time"

	"github.com/schemabounce/schemadeploy/internal/schema"
)

// Language is the entity-discovery language selector.
type Language string

const (
	LangCSharp     Language = "csharp"
	LangJava       Language = "java"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangGo         Language = "go"
)

// Mode is the deployment's operation mode.
type Mode string

const (
	ModeValidate Mode = "validate"
	ModeExecute  Mode = "execute"
)

// ValidationLevel controls how strictly the differ/validator treats
// warnings as blocking. The engine itself always reports everything it
// finds; ValidationLevel is consulted only by callers that decide
// whether to proceed (executor's approval-bypass and exit-code mapping).
type ValidationLevel string

const (
	ValidationLoose  ValidationLevel = "loose"
	ValidationNormal ValidationLevel = "normal"
	ValidationStrict ValidationLevel = "strict"
)

// Environment is the deployment's environment tag.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvBeta Environment = "beta"
	EnvProd Environment = "prod"
)

// Connection holds a provider's connection settings. Provider-specific
// fields are only consulted by the matching Provider.
type Connection struct {
	Server         string
	Port           int
	Database       string
	Username       string
	Password       string
	IntegratedAuth bool
	SchemaNamespace string

	// SQL Server
	Encrypt      bool
	TrustServerCert bool
	Instance     string

	// PostgreSQL
	SSLMode         string
	SearchPath      string
	ApplicationName string

	// MySQL
	MySQLSSLMode string
	Charset      string

	// Oracle
	ServiceName string

	// SQLite
	FilePath        string
	JournalMode     string
	Synchronous     string
}

// Backup holds the backup subsystem's configuration (spec.md §4.7, §6).
type Backup struct {
	BeforeDeployment  bool
	Directory         string
	RetentionDays     int
	RestorePointLabel string
	SQLServerBackupType string // FULL, DIFFERENTIAL, LOG
	S3BucketName      string // FULL addition: optional retention mirror, see SPEC_FULL.md
	S3Prefix          string
}

// Safety holds optional protective behaviors that are additive to
// spec.md's documented flow (SPEC_FULL.md): disabled by default, and
// never change DROP's risk classification or phase placement when on.
type Safety struct {
	QuarantineBeforeDrop bool
}

// Config is the complete external configuration surface for one
// deployment run.
type Config struct {
	Language Language
	Provider schema.Provider

	Connection Connection

	ConnectionTimeoutSec int
	CommandTimeoutSec    int
	RetryAttempts        int
	RetryIntervalSec     int

	Mode       Mode
	NoOp       bool
	SkipBackup bool

	Env             Environment
	Vertical        string
	ValidationLevel ValidationLevel
	CrossSchemaReferenceEnabled bool

	CustomScriptsPath string

	Backup Backup
	Safety Safety

	BypassApproval bool // BYPASS_APPROVAL=true, or implied by dev env / validate / no-op
}

// Normalize fills in zero-valued fields with spec.md's documented
// defaults and recomputes BypassApproval. Call once after parsing.
func (c *Config) Normalize() {
	if c.ConnectionTimeoutSec == 0 {
		c.ConnectionTimeoutSec = 30
	}
	if c.CommandTimeoutSec == 0 {
		c.CommandTimeoutSec = 300
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryIntervalSec == 0 {
		c.RetryIntervalSec = 2
	}
	if c.ValidationLevel == "" {
		c.ValidationLevel = ValidationNormal
	}
	if c.Connection.SchemaNamespace == "" {
		c.Connection.SchemaNamespace = defaultNamespace(c.Provider, c.Connection)
	}

	c.BypassApproval = c.BypassApproval ||
		c.Env == EnvDev ||
		c.Mode == ModeValidate ||
		c.NoOp
}

func defaultNamespace(p schema.Provider, conn Connection) string {
	switch p {
	case schema.ProviderSQLServer:
		return "dbo"
	case schema.ProviderPostgres:
		return "public"
	case schema.ProviderMySQL:
		return conn.Database
	case schema.ProviderOracle:
		return upper(conn.Username)
	case schema.ProviderSQLite:
		return ""
	default:
		return ""
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// CommandTimeout returns CommandTimeoutSec as a time.Duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSec) * time.Second
}

// ConnectionTimeout returns ConnectionTimeoutSec as a time.Duration.
func (c *Config) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutSec) * time.Second
}

// RetryInterval returns the base retry interval as a time.Duration.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalSec) * time.Second
}

// DefaultPort returns the provider's default connection port.
func DefaultPort(p schema.Provider) int {
	switch p {
	case schema.ProviderSQLServer:
		return 1433
	case schema.ProviderPostgres:
		return 5432
	case schema.ProviderMySQL:
		return 3306
	case schema.ProviderOracle:
		return 1521
	case schema.ProviderSQLite:
		return 0
	default:
		return 0
	}
}
