// Package sql provides validation for identifiers and filter values that
// end up inside generated SQL text.
package sql

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ValidateIdentifier checks that a table or column name is a plain SQL
// identifier. Generated SQL interpolates identifiers directly (values are
// always parameterized), so anything outside this shape is rejected before
// rendering rather than quoted.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("empty identifier")
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// ValidateIdentifiers validates every name, reporting the first failure.
func ValidateIdentifiers(names ...string) error {
	for _, name := range names {
		if err := ValidateIdentifier(name); err != nil {
			return err
		}
	}
	return nil
}
