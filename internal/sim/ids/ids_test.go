package ids

import "testing"

func TestAllocator_Monotonic(t *testing.T) {
	a := NewAllocator()
	if id := a.Next(); id != 1 {
		t.Fatalf("first id=%d want 1", id)
	}
	if id := a.Next(); id != 2 {
		t.Fatalf("second id=%d want 2", id)
	}
	a.Observe(10)
	if id := a.Next(); id != 11 {
		t.Fatalf("after Observe(10) got %d want 11", id)
	}
	a.Observe(3)
	if id := a.Next(); id != 12 {
		t.Fatalf("Observe must not move backwards, got %d", id)
	}
	var zero Allocator
	if id := zero.Next(); id != 1 {
		t.Fatalf("zero allocator first id=%d", id)
	}
}

func TestObjectIDRoundTrip(t *testing.T) {
	id, ok := ParseObjectID(ObjectID(42).String())
	if !ok || id != 42 {
		t.Fatalf("round trip: id=%d ok=%v", id, ok)
	}
	for _, bad := range []string{"", "obj_", "obj_0", "42", "obj_x"} {
		if _, ok := ParseObjectID(bad); ok {
			t.Fatalf("expected parse failure for %q", bad)
		}
	}
}

func TestNewDocumentID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := NewDocumentID(KindCircuit)
		if err != nil {
			t.Fatalf("NewDocumentID: %v", err)
		}
		if len(id) != 9 || id[0] != 'c' {
			t.Fatalf("bad id %q", id)
		}
		kind, ok := ParseDocumentID(id)
		if !ok || kind != KindCircuit {
			t.Fatalf("ParseDocumentID(%q) kind=%v ok=%v", id, kind, ok)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	id, err := NewDocumentID(KindComponent)
	if err != nil || id[0] != 'o' {
		t.Fatalf("component id=%q err=%v", id, err)
	}
	if _, err := NewDocumentID('x'); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestParseDocumentIDRejectsInvalid(t *testing.T) {
	for _, bad := range []string{"", "c", "cABCDEFG", "xABCDEFGH", "cABCD-FGH", "cABCDEFGHI"} {
		if _, ok := ParseDocumentID(bad); ok {
			t.Fatalf("expected parse failure for %q", bad)
		}
	}
}
