package source

import (
	"fmt"

	"fortio.org/safecast"
)

// Set stores all input sources and macro substitution frames of one assembly
// in compact slice-based arenas. Index 0 of each arena is reserved for the
// NoSource/NoSubst sentinel.
type Set struct {
	sources []Source
	substs  []Subst
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{
		sources: make([]Source, 1, 8),
		substs:  make([]Subst, 1, 8),
	}
}

// AddFile registers a file source and returns its id. includedFrom is the
// position of the .include pseudo-op, or the zero Pos for the main input.
func (s *Set) AddFile(path string, includedFrom Pos) SourceID {
	return s.addSource(Source{Kind: KindFile, Path: path, IncludedFrom: includedFrom})
}

// AddStdin registers the standard input stream as a source.
func (s *Set) AddStdin() SourceID {
	return s.addSource(Source{Kind: KindStdin, Path: "<stdin>"})
}

// AddVirtual registers an in-memory source under the given display name.
func (s *Set) AddVirtual(name string) SourceID {
	return s.addSource(Source{Kind: KindVirtual, Path: name})
}

func (s *Set) addSource(src Source) SourceID {
	value, err := safecast.Conv[uint32](len(s.sources))
	if err != nil {
		panic(fmt.Errorf("source arena overflow: %w", err))
	}
	id := SourceID(value)
	src.ID = id
	s.sources = append(s.sources, src)
	return id
}

// AddSubst registers a macro substitution frame and returns its id.
func (s *Set) AddSubst(name string, callSite, defPos Pos) SubstID {
	value, err := safecast.Conv[uint32](len(s.substs))
	if err != nil {
		panic(fmt.Errorf("substitution arena overflow: %w", err))
	}
	id := SubstID(value)
	s.substs = append(s.substs, Subst{ID: id, Name: name, CallSite: callSite, DefPos: defPos})
	return id
}

// Source returns the source record or nil for an invalid id.
func (s *Set) Source(id SourceID) *Source {
	if !id.IsValid() || int(id) >= len(s.sources) {
		return nil
	}
	return &s.sources[id]
}

// Subst returns the substitution frame or nil for an invalid id.
func (s *Set) Subst(id SubstID) *Subst {
	if !id.IsValid() || int(id) >= len(s.substs) {
		return nil
	}
	return &s.substs[id]
}

// Len reports the number of registered sources excluding the sentinel.
func (s *Set) Len() int { return len(s.sources) - 1 }

// PathOf returns the display path of a source, or "<unknown>" for the sentinel.
func (s *Set) PathOf(id SourceID) string {
	if src := s.Source(id); src != nil {
		return src.Path
	}
	return "<unknown>"
}

// Describe formats a position as "path:line:col".
func (s *Set) Describe(pos Pos) string {
	return fmt.Sprintf("%s:%d:%d", s.PathOf(pos.Src), pos.Line, pos.Col)
}
