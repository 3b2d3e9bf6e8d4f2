package scripts

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schemabounce/schemadeploy/internal/errs"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

// maxScriptSize bounds one custom script's file size; a legitimate
// migration or seed script has no business exceeding a few megabytes,
// and anything larger is almost certainly a pasted dump or generated
// artifact that doesn't belong in the scripts directory.
const maxScriptSize = 10 << 20 // 10MiB

// Ingest reads every *.sql file under the scripts directory and returns
// the parsed, classified, risk-rated, validated set (spec.md §4.8).
// dir is the explicit scripts path from config; when empty, Ingest
// probes DefaultDirNames under root in order and uses the first one that
// exists. No directory found is not an error: a deployment with no
// custom scripts is normal.
func Ingest(root, dir string, p schema.Provider, namespace string) (*Result, error) {
	scriptsDir, ok := resolveDir(root, dir)
	if !ok {
		return &Result{}, nil
	}

	paths, err := collectSQLFiles(scriptsDir)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "scripts_dir_unreadable", "could not read scripts directory "+scriptsDir, err)
	}

	res := &Result{}
	for _, path := range paths {
		s, err := ingestOne(path, namespace)
		if err != nil {
			res.Errors = append(res.Errors, schema.ValidationError{
				Code: "SCRIPT_UNREADABLE", Message: err.Error(), Object: path,
			})
			continue
		}
		res.Scripts = append(res.Scripts, s)
	}

	errsOut, warnings := Validate(res.Scripts, p)
	res.Errors = append(res.Errors, errsOut...)
	res.Warnings = append(res.Warnings, warnings...)
	return res, nil
}

func resolveDir(root, dir string) (string, bool) {
	if dir != "" {
		full := joinIfRelative(root, dir)
		if isDir(full) {
			return full, true
		}
		return "", false
	}
	for _, name := range DefaultDirNames {
		full := filepath.Join(root, name)
		if isDir(full) {
			return full, true
		}
	}
	return "", false
}

func joinIfRelative(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// collectSQLFiles walks dir for *.sql files, returned in lexicographic
// path order so ingestion (and therefore default execution_order
// tie-breaks) is deterministic across runs.
func collectSQLFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".sql") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func ingestOne(path, namespace string) (*schema.CustomScript, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxScriptSize {
		return nil, errs.New(errs.KindValidation, "script_too_large", path+" exceeds the maximum custom script size")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(raw)
	filename := filepath.Base(path)

	h := ParseHeader(content)
	kind := Classify(filename, content)
	risk := RiskRate(content)
	deps := ExtractDependencies(content)
	order := ResolveOrder(filename, h, kind)

	ns := namespace
	if h.Schema != "" {
		ns = h.Schema
	}

	s := &schema.CustomScript{
		FilePath:       path,
		Name:           strings.TrimSuffix(filename, filepath.Ext(filename)),
		Kind:           kind,
		Content:        content,
		Risk:           risk,
		ExecutionOrder: order,
		Transactional:  Transactional(content, kind),
		Retryable:      Retryable(content),
		Dependencies:   deps,
		Namespace:      ns,
	}
	if h.Phase != nil {
		s.PinnedPhase = *h.Phase
	}
	if h.Rollback != "" {
		rollbackPath := filepath.Join(filepath.Dir(path), h.Rollback)
		if rb, err := os.ReadFile(rollbackPath); err == nil {
			s.RollbackScript = string(rb)
		}
	}

	return s, nil
}
