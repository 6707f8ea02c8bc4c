package core

import (
	"testing"

	. "github.com/Comcast/sage/util/testutil"
)

func TestStoreOrder(t *testing.T) {
	s := NewStore(Maps(`[{"n":1},{"n":2}]`))
	s.Insert(Fact{"n": 3})
	s.Insert(Fact{"n": 4})

	if n := s.Retract(func(f Fact) bool { return f["n"] == 2.0 }); n != 1 {
		t.Fatal(n)
	}
	s.Insert(Fact{"n": 5})

	if got := JS(s.Facts()); got != `[{"n":1},{"n":3},{"n":4},{"n":5}]` {
		t.Fatal(got)
	}
	if s.Len() != 4 {
		t.Fatal(s.Len())
	}
}

func TestStoreSnapshot(t *testing.T) {
	initial := Maps(`[{"systemKey":"rec.sword"}]`)
	s := NewStore(initial)

	// The store has its own copies.
	initial[0]["systemKey"] = "rec.axe"
	fs := s.Facts()
	fs[0]["extra"] = true

	if got := JS(s.Facts()); got != `[{"systemKey":"rec.sword"}]` {
		t.Fatal(got)
	}
}

func TestStoreReset(t *testing.T) {
	s := NewStore(nil)
	s.Insert(Fact{"n": 1})
	s.Reset(Maps(`[{"n":2}]`))
	if got := JS(s.Facts()); got != `[{"n":2}]` {
		t.Fatal(got)
	}
	s.Reset(nil)
	if s.Len() != 0 {
		t.Fatal(s.Len())
	}
}

func TestStoreContains(t *testing.T) {
	s := NewStore(Maps(`[{"questionId":"q1","selectedOptions":["Y"]}]`))
	if !s.Contains(Fact{"questionId": "q1", "selectedOptions": []string{"Y"}}) {
		t.Fatal("should contain")
	}
	if s.Contains(Fact{"questionId": "q1", "selectedOptions": []string{"N"}}) {
		t.Fatal("shouldn't contain")
	}
	s.Insert(Fact{"n": 1})
	if !s.Contains(Fact{"n": 1.0}) {
		t.Fatal("should contain")
	}
}
