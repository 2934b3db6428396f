package command

import (
	"fmt"
	"strings"
)

// SchemaMismatchError reports a function call that does not fit the declared schema
type SchemaMismatchError struct {
	Function string
	Missing  []string
	Reason   string
}

func (e *SchemaMismatchError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("function call %q is missing required arguments: %s", e.Function, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("function call %q does not match schema: %s", e.Function, e.Reason)
}
