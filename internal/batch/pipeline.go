package batch

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Ashfaaq98/stixkit/internal/fixup"
	"github.com/Ashfaaq98/stixkit/internal/remap"
	"github.com/Ashfaaq98/stixkit/internal/stix"
)

// ErrDocument marks a failure confined to a single document.
var ErrDocument = errors.New("document processing failed")

// DocumentError reports which file failed and why.
type DocumentError struct {
	Path string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDocument) match any DocumentError.
func (e *DocumentError) Is(target error) bool { return target == ErrDocument }

// Pipeline is the fixed per-document sequence: fixups in order, then the
// two-phase identifier remap.
type Pipeline struct {
	Fixups []fixup.Fixup
	Remap  remap.Options
}

// DefaultPipeline returns the standard fixups followed by remapping.
func DefaultPipeline(removeFields []string, remapOpts remap.Options) Pipeline {
	return Pipeline{
		Fixups: fixup.Default(removeFields),
		Remap:  remapOpts,
	}
}

// Result summarizes what the pipeline did to one document.
type Result struct {
	Objects  int            `json:"objects"`
	Remapped int            `json:"remapped"`
	Replaced int            `json:"replaced"`
	Fixups   map[string]int `json:"fixups,omitempty"`
	Changed  bool           `json:"changed"`
}

// Process runs the pipeline over raw JSON and returns the rewritten bytes.
func (p Pipeline) Process(data []byte) ([]byte, Result, error) {
	var res Result

	doc, err := stix.Decode(data)
	if err != nil {
		return nil, res, err
	}
	objs, err := doc.Objects()
	if err != nil {
		return nil, res, err
	}
	res.Objects = len(objs)

	for _, f := range p.Fixups {
		n, err := f.Apply(objs)
		if err != nil {
			return nil, res, fmt.Errorf("%s: %w", f.Name, err)
		}
		if n > 0 {
			if res.Fixups == nil {
				res.Fixups = make(map[string]int)
			}
			res.Fixups[f.Name] = n
		}
	}

	m, replaced, err := remap.Apply(objs, p.Remap)
	if err != nil {
		return nil, res, fmt.Errorf("remap: %w", err)
	}
	res.Remapped = len(m)
	res.Replaced = replaced

	doc.SetObjects(objs)
	out, err := doc.Encode()
	if err != nil {
		return nil, res, err
	}
	res.Changed = !bytes.Equal(bytes.TrimSpace(out), bytes.TrimSpace(data))
	return out, res, nil
}
