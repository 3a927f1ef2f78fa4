package revision

import "testing"

func TestDigestIsDeterministic(t *testing.T) {
	a := Digest([]byte(`{"name":"a"}`))
	b := Digest([]byte(`{"name":"a"}`))
	if a != b {
		t.Fatalf("expected identical digests, got %q and %q", a, b)
	}
	c := Digest([]byte(`{"name":"b"}`))
	if a == c {
		t.Fatalf("expected different digests for different bodies")
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		rev        string
		generation int
		hash       string
		ok         bool
	}{
		{"1-abc123", 1, "abc123", true},
		{"42-deadbeef", 42, "deadbeef", true},
		{"", 0, "", false},
		{"no-dash-missing", 0, "", false}, // "no" is not an integer
		{"1-", 0, "", false},
		{"-abc", 0, "", false},
	}
	for _, c := range cases {
		gen, hash, ok := Parse(c.rev)
		if ok != c.ok {
			t.Fatalf("Parse(%q): ok = %v, want %v", c.rev, ok, c.ok)
		}
		if !ok {
			continue
		}
		if gen != c.generation || hash != c.hash {
			t.Fatalf("Parse(%q) = (%d, %q), want (%d, %q)", c.rev, gen, hash, c.generation, c.hash)
		}
	}
}

func TestNextStartsAtOne(t *testing.T) {
	rev := Next("", "abc")
	if rev != "1-abc" {
		t.Fatalf("Next(\"\", \"abc\") = %q, want \"1-abc\"", rev)
	}
}

func TestNextIncrementsGeneration(t *testing.T) {
	rev := Next("5-old", "new")
	if rev != "6-new" {
		t.Fatalf("Next(\"5-old\", \"new\") = %q, want \"6-new\"", rev)
	}
}

func TestNewDocumentIDShape(t *testing.T) {
	id := NewDocumentID()
	if len(id) != 32 {
		t.Fatalf("expected 32 hex characters, got %d (%q)", len(id), id)
	}
	for _, r := range id {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			t.Fatalf("NewDocumentID contains non-hex character %q", r)
		}
	}
}
