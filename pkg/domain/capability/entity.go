// Package capability defines the CapabilityRecord domain entity: a
// validated description of what one discovered resource type can do,
// produced by the classification pipeline and persisted into the
// semantic index.
package capability

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capscanio/capscan/pkg/domain/shared"
)

// recordNamespace is the fixed UUID namespace for capability record IDs.
// Deriving record IDs from this namespace and the item name means
// re-scanning the same item always produces the same storage key, which
// keeps at-least-once index writes idempotent.
var recordNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Complexity classifies how involved a capability is to use.
type Complexity string

const (
	ComplexityBasic        Complexity = "basic"
	ComplexityIntermediate Complexity = "intermediate"
	ComplexityAdvanced     Complexity = "advanced"
)

// IsValid checks if the complexity is a valid value.
func (c Complexity) IsValid() bool {
	switch c {
	case ComplexityBasic, ComplexityIntermediate, ComplexityAdvanced:
		return true
	}
	return false
}

// String returns the string representation of the complexity.
func (c Complexity) String() string {
	return string(c)
}

// AllComplexities returns all valid complexity values.
func AllComplexities() []Complexity {
	return []Complexity{ComplexityBasic, ComplexityIntermediate, ComplexityAdvanced}
}

// RecordID derives the deterministic storage key for an item name.
func RecordID(name string) shared.ID {
	return shared.NewDeterministicID(recordNamespace, strings.TrimSpace(name))
}

// Record is a validated capability classification for one item.
type Record struct {
	ID          shared.ID  `json:"id"`
	Name        string     `json:"name"`
	Tags        []string   `json:"tags"`
	Description string     `json:"description"`
	Complexity  Complexity `json:"complexity"`
	Confidence  float64    `json:"confidence"`

	// Provenance
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}

// NewRecord creates a validated capability record for an item.
func NewRecord(name string, tags []string, description string, complexity Complexity, confidence float64) (*Record, error) {
	r := &Record{
		ID:          RecordID(name),
		Name:        strings.TrimSpace(name),
		Tags:        tags,
		Description: strings.TrimSpace(description),
		Complexity:  complexity,
		Confidence:  confidence,
		ScannedAt:   time.Now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// SetProvenance records which provider and model produced the record.
func (r *Record) SetProvenance(provider, model string) {
	r.Provider = provider
	r.Model = model
}

// Validate checks the record's invariants.
func (r *Record) Validate() error {
	if r.Name == "" {
		return shared.NewDomainError("VALIDATION", "name is required", shared.ErrValidation)
	}
	if r.Description == "" {
		return shared.NewDomainError("VALIDATION", "description is required", shared.ErrValidation)
	}
	if len(r.Tags) == 0 {
		return shared.NewDomainError("VALIDATION", "at least one tag is required", shared.ErrValidation)
	}
	for _, tag := range r.Tags {
		if strings.TrimSpace(tag) == "" {
			return shared.NewDomainError("VALIDATION", "tags must not be blank", shared.ErrValidation)
		}
	}
	if !r.Complexity.IsValid() {
		return shared.NewDomainError("VALIDATION",
			fmt.Sprintf("invalid complexity %q", r.Complexity), shared.ErrValidation)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return shared.NewDomainError("VALIDATION",
			fmt.Sprintf("confidence %v outside [0,1]", r.Confidence), shared.ErrValidation)
	}
	return nil
}
