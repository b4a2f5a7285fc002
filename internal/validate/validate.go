// Package validate checks STIX 2.1 documents against an embedded structural
// JSON Schema and summarizes the results for a directory tree.
package validate

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Ashfaaq98/stixkit/internal/bus"
	"github.com/Ashfaaq98/stixkit/internal/stix"
	"github.com/Ashfaaq98/stixkit/internal/store"
)

//go:embed stix21.schema.json
var bundleSchema []byte

const schemaURL = "https://stixkit.local/schemas/stix21-bundle.json"

// Document statuses.
const (
	StatusValid   = store.DocumentValid
	StatusInvalid = store.DocumentInvalid
	StatusError   = store.DocumentError
)

var ansiEscape = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

// StripANSI removes terminal color and control sequences.
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// FileResult is the outcome for one document.
type FileResult struct {
	Path   string   `json:"path" yaml:"path"`
	Name   string   `json:"name" yaml:"name"`
	Status string   `json:"status" yaml:"status"`
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Report summarizes a validation run.
type Report struct {
	Root             string       `json:"root" yaml:"root"`
	RunID            string       `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Total            int          `json:"total" yaml:"total"`
	Valid            int          `json:"valid" yaml:"valid"`
	Invalid          int          `json:"invalid" yaml:"invalid"`
	ProcessingErrors int          `json:"processing_errors" yaml:"processing_errors"`
	Files            []FileResult `json:"files" yaml:"files"`
}

// Problems returns the results that are not valid, in path order.
func (r *Report) Problems() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Status != StatusValid {
			out = append(out, f)
		}
	}
	return out
}

// Validator validates documents against the compiled schema.
type Validator struct {
	schema *jsonschema.Schema
	ledger store.Ledger
	bus    bus.Bus
	logger *zap.Logger
}

// New compiles the embedded schema. ledger and b may be nil.
func New(ledger store.Ledger, b bus.Bus, logger *zap.Logger) (*Validator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if b == nil {
		b = bus.NewNullBus(logger)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(bundleSchema)); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{
		schema: schema,
		ledger: ledger,
		bus:    b,
		logger: logger.With(zap.String("component", "validate")),
	}, nil
}

// ValidateBytes checks one document. It returns the error lines for an
// invalid document, or an error when the input cannot be checked at all.
func (v *Validator) ValidateBytes(data []byte) ([]string, error) {
	doc, err := stix.Decode(data)
	if err != nil {
		return nil, err
	}

	err = v.schema.Validate(doc.Root())
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, err
	}
	return errorLines(ve), nil
}

// errorLines flattens the leaves of a validation error tree into
// "[X] <location>: <message>" lines.
func errorLines(ve *jsonschema.ValidationError) []string {
	var lines []string
	seen := make(map[string]bool)
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			line := StripANSI(fmt.Sprintf("[X] %s: %s", loc, e.Message))
			if !seen[line] {
				seen[line] = true
				lines = append(lines, line)
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return lines
}

// ValidateFile checks the document at path.
func (v *Validator) ValidateFile(path string) FileResult {
	res := FileResult{Path: path, Name: filepath.Base(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Status = StatusError
		res.Errors = []string{"Processing error: " + err.Error()}
		return res
	}
	lines, err := v.ValidateBytes(data)
	switch {
	case err != nil:
		res.Status = StatusError
		res.Errors = []string{"Processing error: " + StripANSI(err.Error())}
	case len(lines) > 0:
		res.Status = StatusInvalid
		res.Errors = lines
	default:
		res.Status = StatusValid
	}
	return res
}

// ValidateDir walks root recursively and validates every file whose name
// ends in .json, compared case-insensitively.
func (v *Validator) ValidateDir(ctx context.Context, root string) (*Report, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)

	rep := &Report{Root: root}
	if v.ledger != nil {
		id, err := v.ledger.StartRun(ctx, store.Run{Command: "validate", Dir: root})
		if err != nil {
			return nil, err
		}
		rep.RunID = id
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := v.ValidateFile(path)
		rep.Files = append(rep.Files, res)
		rep.Total++
		switch res.Status {
		case StatusValid:
			rep.Valid++
		case StatusInvalid:
			rep.Invalid++
		default:
			rep.ProcessingErrors++
		}
		v.logger.Debug("validated document", zap.String("path", path), zap.String("status", res.Status))
		v.record(ctx, rep.RunID, res)
	}

	if v.ledger != nil {
		if err := v.ledger.FinishRun(ctx, rep.RunID, rep.Total, rep.Invalid+rep.ProcessingErrors); err != nil {
			v.logger.Warn("failed to finish run", zap.String("run_id", rep.RunID), zap.Error(err))
		}
	}
	return rep, nil
}

func (v *Validator) record(ctx context.Context, runID string, res FileResult) {
	errText := strings.Join(res.Errors, "\n")
	if v.ledger != nil && runID != "" {
		if _, err := v.ledger.RecordDocument(ctx, store.Document{
			RunID:  runID,
			Path:   res.Path,
			Status: res.Status,
			Error:  errText,
		}); err != nil {
			v.logger.Warn("failed to record document", zap.String("path", res.Path), zap.Error(err))
		}
	}
	_ = v.bus.PublishDocument(ctx, bus.DocumentMessage{
		RunID:   runID,
		Command: "validate",
		Path:    res.Path,
		Status:  res.Status,
		Error:   errText,
	})
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

	if r.Total == 0 {
		fmt.Fprintf(&b, "No JSON files found in %s\n", r.Root)
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "%s\nVALIDATION SUMMARY:\n", rule)
	fmt.Fprintf(&b, "  Total files processed: %d\n", r.Total)
	fmt.Fprintf(&b, "  Valid STIX 2.1 documents: %d\n", r.Valid)
	fmt.Fprintf(&b, "  Invalid STIX 2.1 documents: %d\n", r.Invalid)
	fmt.Fprintf(&b, "  Files with processing errors: %d\n", r.ProcessingErrors)
	b.WriteString(rule + "\n")

	if problems := r.Problems(); len(problems) > 0 {
		b.WriteString("\nINVALID FILES:\n")
		for _, f := range problems {
			fmt.Fprintf(&b, "  File: %s\n    Errors:\n", f.Name)
			if len(f.Errors) == 0 {
				b.WriteString("      No specific errors detected\n")
			}
			for _, e := range f.Errors {
				fmt.Fprintf(&b, "      %s\n", e)
			}
			b.WriteString("\n")
		}
		b.WriteString(rule + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
