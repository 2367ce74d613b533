// Package ops defines the operation record model shared by the registry
// synchronizer and the declaration scanner.
//
// A Record describes a named, callable API action: method, url and
// parameter metadata, partitioned by owner and tag in the registry.
// Validation is an explicit pure function returning field-level
// diagnostics; both the scanner and direct-write entry points use it.
package ops

import (
	"fmt"
	"strings"
)

// Reserved names understood by the registry.
const (
	// OwnerSystem is the shared owner whose partitions are visible to
	// every reader as fallback data.
	OwnerSystem = "system"

	// TagAll is the implicit catch-all tag. Every record written under
	// any tag is also written under TagAll for the same owner.
	TagAll = "all"

	// TagDefault is the tag assumed when a caller or declaration does
	// not name one.
	TagDefault = "default"

	// TypeCustom is the fixed type constant carried by every record.
	TypeCustom = "custom"
)

// allowedMethods is the closed set of HTTP methods a record may declare.
var allowedMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"DELETE": true,
	"PATCH":  true,
}

// Param is a single named operation parameter with its description.
// Order is preserved from the declaration site.
type Param struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Record is a validated operation descriptor.
type Record struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Method      string   `json:"method"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	Params      []Param  `json:"params"`

	// Parameters carries an arbitrary nested literal structure
	// (maps, lists, scalars) for richer schemas. Optional.
	Parameters any `json:"parameters,omitempty"`

	IncludeAccessToken bool   `json:"includeAccessToken"`
	Type               string `json:"type"`

	// Schema is carried through opaquely when present.
	Schema any `json:"schema,omitempty"`
}

// Reference identifies a record for deletion. All three of ID, Name and
// URL must match an existing record exactly; matching only the id is
// deliberately insufficient, so a record that reuses an id after a
// partial failure is never deleted by accident.
type Reference struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

// Matches reports whether rec is the record this reference names,
// comparing the full (id, name, url) triple.
func (ref Reference) Matches(rec Record) bool {
	return rec.ID == ref.ID && rec.Name == ref.Name && rec.URL == ref.URL
}

// FieldError is a single validation diagnostic tied to a record field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Normalize applies the record defaults: method POST (uppercased), tags
// ["default"], includeAccessToken true, type "custom", and id mirroring
// the name when unset. Returns a copy; the input is not modified.
func Normalize(r Record) Record {
	if r.Method == "" {
		r.Method = "POST"
	}
	r.Method = strings.ToUpper(r.Method)
	if len(r.Tags) == 0 {
		r.Tags = []string{TagDefault}
	}
	if r.ID == "" {
		r.ID = r.Name
	}
	r.IncludeAccessToken = true
	r.Type = TypeCustom
	if r.Params == nil {
		r.Params = []Param{}
	}
	return r
}

// Validate checks a record against the schema and returns every
// violation found. A nil result means the record is valid. Validate
// never modifies the record; callers normalize first.
func Validate(r Record) []FieldError {
	var errs []FieldError

	if r.ID == "" {
		errs = append(errs, FieldError{"id", "id is required"})
	}
	if r.Name == "" {
		errs = append(errs, FieldError{"name", "name is required"})
	}
	if r.Description == "" {
		errs = append(errs, FieldError{"description", "description is required"})
	}
	if r.URL == "" {
		errs = append(errs, FieldError{"url", "url is required"})
	}
	if !allowedMethods[strings.ToUpper(r.Method)] {
		errs = append(errs, FieldError{"method",
			fmt.Sprintf("method must be one of GET, POST, PUT, DELETE, PATCH; got %q", r.Method)})
	}
	if len(r.Tags) == 0 {
		errs = append(errs, FieldError{"tags", "at least one tag is required"})
	}
	for i, p := range r.Params {
		if p.Name == "" {
			errs = append(errs, FieldError{fmt.Sprintf("params[%d].name", i), "param name is required"})
		}
		if p.Description == "" {
			errs = append(errs, FieldError{fmt.Sprintf("params[%d].description", i), "param description is required"})
		}
	}

	return errs
}

// EffectiveTags returns the deduplicated tag set used for fanout: the
// declared tags in order, with TagAll appended when not already present.
func EffectiveTags(tags []string) []string {
	seen := make(map[string]bool, len(tags)+1)
	out := make([]string, 0, len(tags)+1)
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if !seen[TagAll] {
		out = append(out, TagAll)
	}
	return out
}
