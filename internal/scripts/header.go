package scripts

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/schemabounce/schemadeploy/internal/schema"
)

// Header is the metadata a script's leading comment block declares
// (spec.md §4.8's "scan the first 20 lines").
type Header struct {
	Description string
	Author      string
	Version     string
	Order       *int
	Schema      string
	Rollback    string // path, relative to the script's own file
	Phase       *int   // pin directive: "Phase:" header, not part of spec.md's named fields but referenced by §4.4's "pin itself to a specific phase via a header directive"
}

const headerScanLines = 20

var headerFieldPattern = regexp.MustCompile(`(?i)^\s*(?:--|#|/\*)?\s*(Description|Author|Version|Order|ExecutionOrder|Schema|Rollback|Phase)\s*:\s*(.*?)\s*(?:\*/)?\s*$`)

// ParseHeader scans the script's first headerScanLines lines for
// "Key: value" metadata comments.
func ParseHeader(content string) Header {
	var h Header
	sc := bufio.NewScanner(strings.NewReader(content))
	for i := 0; i < headerScanLines && sc.Scan(); i++ {
		line := sc.Text()
		m := headerFieldPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key, val := strings.ToLower(m[1]), strings.TrimSpace(m[2])
		switch key {
		case "description":
			h.Description = val
		case "author":
			h.Author = val
		case "version":
			h.Version = val
		case "order", "executionorder":
			if n, err := strconv.Atoi(val); err == nil {
				h.Order = &n
			}
		case "schema":
			h.Schema = val
		case "rollback":
			h.Rollback = val
		case "phase":
			if n, err := strconv.Atoi(val); err == nil {
				h.Phase = &n
			}
		}
	}
	return h
}

var reLeadingDigits = regexp.MustCompile(`^(\d+)`)

// defaultOrderByKind gives each script kind a baseline execution order
// when neither a header directive nor a filename prefix supplies one
// (spec.md §4.8).
var defaultOrderByKind = map[schema.ScriptKind]int{
	schema.ScriptDDL:       10,
	schema.ScriptTrigger:   12,
	schema.ScriptView:      15,
	schema.ScriptData:      30,
	schema.ScriptIndex:     25,
	schema.ScriptProcedure: 20,
	schema.ScriptFunction:  20,
	schema.ScriptDML:       40,
	schema.ScriptMigration: 90,
	schema.ScriptCustom:    50,
}

// ResolveOrder computes a script's execution order: an explicit
// Order/ExecutionOrder header, else leading digits in the file name, else a
// kind-based default (spec.md §4.8 — the spec lists filename digits
// before the header, but E6 shows a header Order: overriding a filename
// prefix, so header wins when both are present).
func ResolveOrder(filename string, h Header, kind schema.ScriptKind) int {
	if h.Order != nil {
		return *h.Order
	}
	base := stripDirs(filename)
	if m := reLeadingDigits.FindStringSubmatch(base); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return defaultOrderByKind[kind]
}

func stripDirs(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
