// Package backup implements the backup subsystem (spec.md §4.7): computing
// a deterministic backup path, invoking each provider's native backup tool,
// verifying the result, and sweeping old backups under the retention
// policy. Grounded on enterprise_safety/backup_framework.go's
// backup-then-validate shape (generalized here from per-object integrity
// records to one whole-database backup per deployment) and
// state/backends/s3.go's bucket/prefix/client wiring for the optional
// retention mirror.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/errs"
	"github.com/schemabounce/schemadeploy/internal/provider"
	"github.com/schemabounce/schemadeploy/internal/schema"
	"github.com/schemabounce/schemadeploy/runtimehelpers/telemetry"
)

// Runner invokes an external backup/restore tool (pg_dump, mysqldump,
// expdp, ...). Kept as an interface so tests can substitute a fake instead
// of shelling out to tools that won't exist in CI.
type Runner interface {
	Run(ctx context.Context, name string, args []string, env map[string]string) ([]byte, error)
}

// Mirror optionally pushes a completed backup file to remote storage
// (SPEC_FULL.md's S3 retention mirror). Nil means local-only.
type Mirror interface {
	Upload(ctx context.Context, localPath, key string) error
}

// Service runs the backup subsystem for one deployment.
type Service struct {
	Provider schema.Provider
	Adapter  provider.Adapter // SQL Server's native BACKUP/RESTORE goes through Adapter.Execute
	Config   *config.Config
	Runner   Runner
	Mirror   Mirror // optional, see SPEC_FULL.md
	Logger   telemetry.Logger

	// Now is the timestamp source for path generation; defaults to
	// time.Now when unset so tests can supply a fixed instant.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// extensions maps each provider to its backup file's conventional suffix
// (spec.md §4.7).
var extensions = map[schema.Provider]string{
	schema.ProviderSQLServer: ".bak",
	schema.ProviderPostgres:  ".sql",
	schema.ProviderMySQL:     ".sql",
	schema.ProviderOracle:    ".dmp",
	schema.ProviderSQLite:    ".db",
}

// Path computes the backup file's path: spec.md §4.7's
// <BACKUP_DIRECTORY>/<env>/<vertical?>/<db>_<label>_<yyyyMMdd_HHmmss><ext>.
func (s *Service) Path() string {
	label := s.Config.Backup.RestorePointLabel
	if label == "" {
		label = "pre-deploy"
	}
	ext := extensions[s.Provider]
	if ext == "" {
		ext = ".bak"
	}

	stamp := s.now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s_%s%s", s.Config.Connection.Database, sanitizeLabel(label), stamp, ext)

	parts := []string{s.Config.Backup.Directory, string(s.Config.Env)}
	if s.Config.Vertical != "" {
		parts = append(parts, s.Config.Vertical)
	}
	parts = append(parts, filename)
	return filepath.Join(parts...)
}

func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	label = strings.ReplaceAll(label, " ", "-")
	return label
}

// CreateBackup implements executor.BackupCreator: compute the path, invoke
// the provider's native tool, verify the result, and (non-fatally) sweep
// retention and mirror to S3. This is the single entry point the executor
// calls before phase 1 (spec.md §4.6 step 3).
func (s *Service) CreateBackup(ctx context.Context) (string, error) {
	path := s.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errs.Wrap(errs.KindBackup, "backup_mkdir_failed", "could not create backup directory", err)
	}

	if err := s.create(ctx, path); err != nil {
		return "", errs.Wrap(errs.KindBackup, "backup_create_failed", "backup creation failed for "+string(s.Provider), err)
	}

	if err := s.Verify(ctx, path); err != nil {
		return "", errs.Wrap(errs.KindBackup, "backup_verify_failed", "backup verification failed", err)
	}

	s.sweepRetention(path)

	if s.Mirror != nil && s.Config.Backup.S3BucketName != "" {
		key := s.Config.Backup.S3Prefix + "/" + filepath.Base(path)
		if err := s.Mirror.Upload(ctx, path, key); err != nil && s.Logger != nil {
			s.Logger.Warn(ctx, "backup.s3_mirror_failed", telemetry.Fields{"path": path, "error": err.Error()})
		}
	}

	return path, nil
}

// create dispatches to the provider-specific backup mechanism (spec.md
// §4.7's "Create").
func (s *Service) create(ctx context.Context, path string) error {
	switch s.Provider {
	case schema.ProviderSQLServer:
		return s.createSQLServer(ctx, path)
	case schema.ProviderPostgres:
		return s.createPostgres(ctx, path)
	case schema.ProviderMySQL:
		return s.createMySQL(ctx, path)
	case schema.ProviderOracle:
		return s.createOracle(ctx, path)
	case schema.ProviderSQLite:
		return s.createSQLite(ctx, path)
	default:
		return fmt.Errorf("unsupported provider %q", s.Provider)
	}
}

// Verify dispatches to the provider-specific verification check (spec.md
// §4.7's "Verify"). Non-empty file size is required in every case.
func (s *Service) Verify(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("backup file missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("backup file %s is empty", path)
	}

	switch s.Provider {
	case schema.ProviderSQLServer:
		return s.verifySQLServer(ctx, path)
	case schema.ProviderPostgres:
		return s.verifyPostgres(ctx, path)
	case schema.ProviderMySQL:
		return s.verifyMySQL(path)
	case schema.ProviderOracle:
		return s.verifyOracle(path)
	case schema.ProviderSQLite:
		return s.verifySQLite(path)
	default:
		return nil
	}
}

// sweepRetention deletes files in path's directory older than
// retention_days. Failures are logged, never fatal (spec.md §4.7).
func (s *Service) sweepRetention(path string) {
	days := s.Config.Backup.RetentionDays
	if days <= 0 {
		return
	}
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn(context.Background(), "backup.retention_scan_failed", telemetry.Fields{"dir": dir, "error": err.Error()})
		}
		return
	}

	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			full := filepath.Join(dir, entry.Name())
			if err := os.Remove(full); err != nil && s.Logger != nil {
				s.Logger.Warn(context.Background(), "backup.retention_delete_failed", telemetry.Fields{"file": full, "error": err.Error()})
			}
		}
	}
}
