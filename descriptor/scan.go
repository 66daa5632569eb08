package descriptor

import "regexp"

// The dialect recognized here is a simple HCL-shaped key/value language:
// identifier = "string"
// identifier = ["single-element-list"]
// identifier = { ... nested block ... }
//
// scanDeclarations is the regex fallback behind the typed declaration
// vocabulary: it recognizes exactly the three assignment shapes above and
// leaves everything else unrecognized (callers treat absence of a key as
// absence of that declaration, never as an error by itself).
var (
	stringAssignment = regexp.MustCompile(`(?m)^\s*([a-z][a-z0-9_]*)\s*=\s*"([^"]*)"\s*$`)
	listAssignment   = regexp.MustCompile(`(?m)^\s*([a-z][a-z0-9_]*)\s*=\s*\[\s*"([^"]*)"\s*\]\s*$`)
	blockAssignment  = regexp.MustCompile(`(?m)^\s*([a-z][a-z0-9_]*)\s*=\s*\{`)
	resourceIdent    = regexp.MustCompile(`(?m)^\s*"?([a-z0-9][a-z0-9-]*[a-z0-9])"?\s*=\s*\{`)
)

// scanDeclarations parses contents into the tagged-union Declaration slice.
// It is a single linear scan: each regex is applied independently over the
// full text, so declarations do not need to appear in any particular order.
func scanDeclarations(contents string) []Declaration {
	var decls []Declaration

	for _, m := range listAssignment.FindAllStringSubmatch(contents, -1) {
		decls = append(decls, Declaration{Kind: DeclList, Key: m[1], List: []string{m[2]}})
	}

	// A list assignment also satisfies the string-assignment shape only if
	// its RHS isn't bracketed; stringAssignment's pattern requires a bare
	// quoted value with no brackets, so the two don't double-match.
	for _, m := range stringAssignment.FindAllStringSubmatch(contents, -1) {
		decls = append(decls, Declaration{Kind: DeclString, Key: m[1], String: m[2]})
	}

	for _, loc := range blockAssignment.FindAllStringSubmatchIndex(contents, -1) {
		key := contents[loc[2]:loc[3]]
		body := extractBlockBody(contents, loc[1]-1)
		decls = append(decls, Declaration{
			Kind:      DeclBlock,
			Key:       key,
			Resources: enumerateResourceNames(body),
		})
	}

	return decls
}

// extractBlockBody returns the text between a matching pair of braces,
// starting at the index of the opening '{'. A simple depth counter handles
// nested blocks.
func extractBlockBody(contents string, openBrace int) string {
	depth := 0
	for i := openBrace; i < len(contents); i++ {
		switch contents[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return contents[openBrace+1 : i]
			}
		}
	}
	return contents[openBrace+1:]
}

// enumerateResourceNames collects left-hand identifier tokens of top-level
// assignments inside a block whose right-hand side opens a nested block,
// for human-readable summaries only.
func enumerateResourceNames(body string) []string {
	var names []string
	for _, m := range resourceIdent.FindAllStringSubmatch(body, -1) {
		names = append(names, m[1])
	}
	return names
}
