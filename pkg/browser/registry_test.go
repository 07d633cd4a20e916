package browser

import "testing"

func TestRegistry_CopyOnWrite(t *testing.T) {
	r := NewRegistry()
	a, b, c := &Session{id: "a"}, &Session{id: "b"}, &Session{id: "c"}

	r.add(a)
	r.add(b)
	before := r.Sessions()

	r.replace(a, c)
	if len(before) != 2 || before[0] != a || before[1] != b {
		t.Fatalf("earlier snapshot changed: %v", before)
	}

	after := r.Sessions()
	if len(after) != 2 || after[0] != b || after[1] != c {
		t.Fatalf("after replace = %v, want [b c]", after)
	}
	if r.Active() != b {
		t.Errorf("active = %v, want b", r.Active())
	}

	r.remove(b)
	if r.Contains(b) || r.Len() != 1 {
		t.Errorf("remove left %d sessions", r.Len())
	}
}

func TestRegistry_EmptyActive(t *testing.T) {
	if NewRegistry().Active() != nil {
		t.Error("empty registry has an active session")
	}
}
