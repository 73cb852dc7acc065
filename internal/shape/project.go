package shape

import (
	"fmt"
	"strings"

	"github.com/roach88/dynq/internal/qerr"
	"github.com/roach88/dynq/internal/resolve"
	"github.com/roach88/dynq/internal/schema"
)

// Mode selects the record type a projection produces.
type Mode string

const (
	// SameType copies the resolved fields into a new row of the source
	// type; every other field takes its default.
	SameType Mode = "same_type"

	// Minimal copies the resolved fields into a synthesized shape holding
	// only those fields.
	Minimal Mode = "minimal"
)

// ParseMode parses a mode name case-insensitively. The empty string is
// Minimal.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "minimal":
		return Minimal, nil
	case "same_type", "sametype", "same":
		return SameType, nil
	default:
		return "", fmt.Errorf("unknown projection mode %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and YAML.
func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Options tune a projection.
type Options struct {
	IncludeParent bool
	Mode          Mode
}

// Projection copies a subset of fields out of rows of Source into rows of
// Shape.
type Projection struct {
	Source *schema.RecordType
	Shape  *schema.RecordType
	Mode   Mode

	// Fields are the resolved source fields, in projection order.
	Fields []resolve.ResolvedField

	targets []int
}

// Project builds a projection with the Default registry.
func Project(rt *schema.RecordType, names []string, opts Options) (*Projection, error) {
	return Default.Project(rt, names, opts)
}

// Project resolves names against rt and builds a projection. Names that
// match no field contribute nothing. A minimal projection needs at least
// one resolved field.
func (r *Registry) Project(rt *schema.RecordType, names []string, opts Options) (*Projection, error) {
	fields := resolve.ResolveSet(rt, names, resolve.Options{IncludeParent: opts.IncludeParent})
	mode := opts.Mode
	if mode == "" {
		mode = Minimal
	}

	p := &Projection{Source: rt, Mode: mode, Fields: fields, targets: make([]int, len(fields))}
	switch mode {
	case SameType:
		p.Shape = rt
		for i, f := range fields {
			p.targets[i] = f.Index
		}
	case Minimal:
		if len(fields) == 0 {
			return nil, qerr.NewInvalidSpec("projection of %s selects no fields from %v", rt.Name, names)
		}
		shapeFields := make([]schema.Field, len(fields))
		for i, f := range fields {
			shapeFields[i] = f.Field
			p.targets[i] = i
		}
		shape, err := r.Shape(shapeFields)
		if err != nil {
			return nil, fmt.Errorf("synthesize shape: %w", err)
		}
		p.Shape = shape
	default:
		return nil, qerr.NewInvalidSpec("unknown projection mode %q", mode)
	}
	return p, nil
}

// Copy copies the projected fields of row into a new row of p.Shape.
func (p *Projection) Copy(row schema.Row) schema.Row {
	out := schema.NewRow(p.Shape)
	for i, f := range p.Fields {
		out.Set(p.targets[i], row.At(f.Index))
	}
	return out
}

// CopyAll projects every row.
func (p *Projection) CopyAll(rows []schema.Row) []schema.Row {
	out := make([]schema.Row, len(rows))
	for i, row := range rows {
		out[i] = p.Copy(row)
	}
	return out
}

// Columns returns the names of the projected source fields.
func (p *Projection) Columns() []string {
	names := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		names[i] = f.Field.Name
	}
	return names
}
