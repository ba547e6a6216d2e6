package diag

import (
	"radasm/internal/source"
)

// Diagnostic is one reported condition, attributed to a source position.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Pos      source.Pos
	Message  string
}
