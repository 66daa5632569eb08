// Package descriptor implements the Descriptor Classifier: mapping a changed
// descriptor path and its contents to a DeploymentUnit.
//
// Extraction is modeled as a thin typed parser that yields a tagged union
// over recognized top-level declarations (DeclKind below), with a classifier
// consuming that union. A regex fallback handles unknown keys only when no
// typed declaration kind recognizes them.
package descriptor

// DeclKind discriminates the kind of top-level declaration a Declaration
// carries.
type DeclKind int

const (
	// DeclString is a `name = "value"` assignment.
	DeclString DeclKind = iota
	// DeclList is a `name = ["value"]` assignment (used by region, which the
	// source dialect expresses as a one-element bracketed list).
	DeclList
	// DeclBlock is a `name = { ... }` assignment introducing a service's
	// resource definitions; Resources holds the enumerated nested identifiers.
	DeclBlock
)

// Declaration is one recognized top-level assignment in a descriptor's
// contents, tagged by Kind.
type Declaration struct {
	Kind      DeclKind
	Key       string
	String    string   // populated when Kind == DeclString
	List      []string // populated when Kind == DeclList
	Resources []string // populated when Kind == DeclBlock
}
