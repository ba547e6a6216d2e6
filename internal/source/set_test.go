package source

import (
	"strings"
	"testing"
)

func TestSetArenas(t *testing.T) {
	set := NewSet()
	if set.Len() != 0 {
		t.Fatalf("fresh set should be empty, got %d", set.Len())
	}

	main := set.AddFile("main.s", Pos{})
	inc := set.AddFile("inc.s", Pos{Src: main, Line: 4, Col: 1})

	if !main.IsValid() || !inc.IsValid() {
		t.Fatalf("expected valid source ids")
	}
	if set.PathOf(inc) != "inc.s" {
		t.Fatalf("PathOf(inc) = %q", set.PathOf(inc))
	}
	if set.Source(inc).IncludedFrom.Src != main {
		t.Fatalf("include parent not recorded")
	}
	if set.Source(NoSource) != nil {
		t.Fatalf("sentinel source must resolve to nil")
	}
}

func TestDescribe(t *testing.T) {
	set := NewSet()
	id := set.AddVirtual("test.s")
	got := set.Describe(Pos{Src: id, Line: 7, Col: 3})
	if got != "test.s:7:3" {
		t.Fatalf("Describe = %q", got)
	}
}

func TestWriteOriginChain(t *testing.T) {
	set := NewSet()
	main := set.AddFile("main.s", Pos{})
	inc := set.AddFile("inc.s", Pos{Src: main, Line: 10, Col: 1})
	sub := set.AddSubst("putint", Pos{Src: inc, Line: 2, Col: 9}, Pos{Src: main, Line: 3, Col: 1})

	var sb strings.Builder
	set.WriteOrigin(&sb, Pos{Subst: sub, Src: main, Line: 4, Col: 5})

	want := "In file included from main.s:10:1:\n" +
		"In macro substituted from inc.s:2:9:\n"
	if sb.String() != want {
		t.Fatalf("origin chain:\n%s\nwant:\n%s", sb.String(), want)
	}
}
