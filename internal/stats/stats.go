// Package stats counts STIX object types across a directory of documents.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Ashfaaq98/stixkit/internal/stix"
)

// TypeCount is one row of a type histogram.
type TypeCount struct {
	Type  string `json:"type" yaml:"type"`
	Count int    `json:"count" yaml:"count"`
}

// FileStats is the per-file breakdown.
type FileStats struct {
	Name   string      `json:"name" yaml:"name"`
	Counts []TypeCount `json:"counts" yaml:"counts"`
}

// FileFailure records a document that could not be read.
type FileFailure struct {
	Name  string `json:"name" yaml:"name"`
	Error string `json:"error" yaml:"error"`
}

// Report is the result of Collect.
type Report struct {
	Dir           string        `json:"dir" yaml:"dir"`
	Files         int           `json:"files" yaml:"files"`
	Totals        []TypeCount   `json:"totals" yaml:"totals"`
	OfficialUsed  int           `json:"official_used" yaml:"official_used"`
	OfficialTotal int           `json:"official_total" yaml:"official_total"`
	Unused        []string      `json:"unused" yaml:"unused"`
	PerFile       []FileStats   `json:"per_file" yaml:"per_file"`
	Failed        []FileFailure `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Collect reads every *.json file (case-insensitive) directly under dir.
// Custom x- types are not counted; objects without a type count as
// "unknown". Unreadable documents are listed in Failed and skipped.
func Collect(ctx context.Context, dir string, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "stats"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	totals := make(map[string]int)
	rep := &Report{Dir: dir}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		counts, err := countFile(filepath.Join(dir, e.Name()))
		if err != nil {
			logger.Warn("failed to process file", zap.String("file", e.Name()), zap.Error(err))
			rep.Failed = append(rep.Failed, FileFailure{Name: e.Name(), Error: err.Error()})
			continue
		}

		rep.Files++
		for typ, n := range counts {
			totals[typ] += n
		}
		rep.PerFile = append(rep.PerFile, FileStats{Name: e.Name(), Counts: mostCommon(counts)})
	}

	rep.Totals = mostCommon(totals)
	rep.OfficialTotal = len(stix.OfficialKinds)
	for _, k := range stix.OfficialKinds {
		if totals[string(k)] > 0 {
			rep.OfficialUsed++
		} else {
			rep.Unused = append(rep.Unused, string(k))
		}
	}
	sort.Strings(rep.Unused)
	return rep, nil
}

func countFile(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := stix.Decode(data)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	objs, err := doc.Objects()
	if errors.Is(err, stix.ErrNoObjects) {
		return counts, nil
	}
	if err != nil {
		return nil, err
	}
	for _, obj := range objs {
		typ := obj.Type()
		if typ == "" {
			typ = "unknown"
		}
		if obj.Kind() == stix.KindCustom {
			continue
		}
		counts[typ]++
	}
	return counts, nil
}

// mostCommon orders counts descending, ties broken by type name.
func mostCommon(counts map[string]int) []TypeCount {
	out := make([]TypeCount, 0, len(counts))
	for typ, n := range counts {
		out = append(out, TypeCount{Type: typ, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Render writes the report as text, yaml or json.
func (r *Report) Render(w io.Writer, format string) error {
	switch format {
	case "", "text":
		return r.writeText(w)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func (r *Report) writeText(w io.Writer) error {
	rule := strings.Repeat("=", 60)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\nSTIX FILE STATISTICS\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Total files processed: %d\n\n", r.Files)

	fmt.Fprintf(&b, "Object type counts (%d / %d official types used):\n", r.OfficialUsed, r.OfficialTotal)
	for _, tc := range r.Totals {
		fmt.Fprintf(&b, "  - %s: %d\n", tc.Type, tc.Count)
	}

	if len(r.Unused) > 0 {
		fmt.Fprintf(&b, "\nUnused STIX types (%d / %d): %s\n", len(r.Unused), r.OfficialTotal, strings.Join(r.Unused, ", "))
	} else {
		fmt.Fprintf(&b, "\nAll %d official STIX types are used.\n", r.OfficialTotal)
	}

	b.WriteString("\nBreakdown per file:\n")
	for _, fs := range r.PerFile {
		fmt.Fprintf(&b, "\n  File: %s\n", fs.Name)
		for _, tc := range fs.Counts {
			fmt.Fprintf(&b, "    - %s: %d\n", tc.Type, tc.Count)
		}
	}

	if len(r.Failed) > 0 {
		fmt.Fprintf(&b, "\nFailed files (%d):\n", len(r.Failed))
		for _, f := range r.Failed {
			fmt.Fprintf(&b, "  - %s: %s\n", f.Name, f.Error)
		}
	}
	b.WriteString(rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}
