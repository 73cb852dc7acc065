// Package shape builds projections and the record shapes they produce.
//
// SHAPE REGISTRY:
//
// A synthesized shape is a record type holding exactly a requested set of
// fields. Shapes are cached by the ordered (name, type) signature of their
// fields, so two requests for the same field set get the same
// *schema.RecordType, even from unrelated call sites.
//
// The cache is append-only. Lookups take a read lock; a miss takes the
// write lock and checks again before building, so at most one shape is ever
// materialised per signature.
package shape

import (
	"strings"
	"sync"

	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// Default is the process-wide registry.
var Default = NewRegistry()

// Registry caches synthesized shapes by field signature.
type Registry struct {
	mu     sync.RWMutex
	shapes map[string]*schema.RecordType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{shapes: make(map[string]*schema.RecordType)}
}

// Shape returns the shape for fields, building it on first request.
// Foreign keys are kept only when the key field is part of the same set.
func (r *Registry) Shape(fields []schema.Field) (*schema.RecordType, error) {
	sig := Signature(fields)

	r.mu.RLock()
	rt, ok := r.shapes[sig]
	r.mu.RUnlock()
	if ok {
		return rt, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have built it between the two locks.
	if rt, ok := r.shapes[sig]; ok {
		return rt, nil
	}

	rt, err := schema.NewRecordType(Name(sig), shapeFields(fields)...)
	if err != nil {
		return nil, err
	}
	r.shapes[sig] = rt
	return rt, nil
}

// Lookup returns the cached shape for a signature without building one.
func (r *Registry) Lookup(sig string) (*schema.RecordType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.shapes[sig]
	return rt, ok
}

// Len returns the number of shapes built so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shapes)
}

// Signature returns the ordered (name, type) signature of fields, in the
// same form as schema.RecordType.Signature.
func Signature(fields []schema.Field) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(f.Type.Name())
		b.WriteByte(';')
	}
	return b.String()
}

// Name derives a stable shape name from a signature.
func Name(sig string) string {
	return "Shape_" + value.Hash(value.DomainShape, []byte(sig))[:12]
}

func shapeFields(fields []schema.Field) []schema.Field {
	present := make(map[string]bool, len(fields))
	for _, f := range fields {
		present[f.Name] = true
	}
	out := make([]schema.Field, len(fields))
	for i, f := range fields {
		out[i] = f
		if f.ForeignKey != "" && !present[f.ForeignKey] {
			out[i].ForeignKey = ""
		}
	}
	return out
}
