package fields

import (
	"sort"
	"sync"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FieldExtractorRegistry = (*Registry)(nil)

// Registry implements FieldExtractorRegistry with priority-based selection.
// When multiple extractors match a document type, the highest priority one is used.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.FieldExtractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make([]driven.FieldExtractor, 0),
	}
}

// Register registers an extractor.
func (r *Registry) Register(extractor driven.FieldExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extractors = append(r.extractors, extractor)
}

// Get retrieves the best-matching extractor for a document type.
// Returns nil if nothing is registered for the type.
func (r *Registry) Get(docType domain.DocumentType) driven.FieldExtractor {
	matches := r.GetAll(docType)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// GetAll retrieves all extractors that handle a type, sorted by priority (highest first).
func (r *Registry) GetAll(docType domain.DocumentType) []driven.FieldExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []driven.FieldExtractor
	for _, e := range r.extractors {
		if handlesType(e.DocumentTypes(), docType) {
			matches = append(matches, e)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority() > matches[j].Priority()
	})
	return matches
}

// List returns the names of all registered extractors, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.extractors))
	for _, e := range r.extractors {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// handlesType reports whether a supported-type list covers docType.
// An empty list is a wildcard.
func handlesType(supported []domain.DocumentType, docType domain.DocumentType) bool {
	if len(supported) == 0 {
		return true
	}
	for _, t := range supported {
		if t == docType {
			return true
		}
	}
	return false
}

// Extract runs the best extractor registered for docType over text.
// Returns an empty map when nothing matches.
func Extract(reg driven.FieldExtractorRegistry, text string, docType domain.DocumentType) map[string]string {
	if reg == nil {
		return map[string]string{}
	}
	e := reg.Get(docType)
	if e == nil {
		return map[string]string{}
	}
	return e.Extract(text)
}

// DefaultRegistry creates a registry with the built-in strategies registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(PassportExtractor())
	r.Register(WorkPermitExtractor())
	r.Register(CertificationExtractor())
	r.Register(EmploymentContractExtractor())
	r.Register(VisaExtractor())
	r.Register(GeneralExtractor())

	return r
}
