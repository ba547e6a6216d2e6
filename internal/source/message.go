package source

import (
	"fmt"
	"io"
)

// WriteOrigin prints the inclusion and macro-substitution backtrace that leads
// to pos, outermost frame first, one line per frame:
//
//	In file included from main.s:10:1:
//	In macro substituted from main.s:12:9:
//
// The position line itself ("file:line:col: Error: ...") is printed by the
// caller; WriteOrigin only emits the chain above it.
func (s *Set) WriteOrigin(w io.Writer, pos Pos) {
	if sub := s.Subst(pos.Subst); sub != nil {
		s.WriteOrigin(w, sub.CallSite)
		fmt.Fprintf(w, "In macro substituted from %s:\n", s.Describe(sub.CallSite))
	}
	s.writeIncludeChain(w, pos.Src)
}

func (s *Set) writeIncludeChain(w io.Writer, id SourceID) {
	src := s.Source(id)
	if src == nil || src.IncludedFrom.IsZero() {
		return
	}
	s.writeIncludeChain(w, src.IncludedFrom.Src)
	fmt.Fprintf(w, "In file included from %s:\n", s.Describe(src.IncludedFrom))
}
