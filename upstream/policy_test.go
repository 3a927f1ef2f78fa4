package upstream

import "testing"

func TestPolicyShouldReadThroughGlobalFlag(t *testing.T) {
	p := NewPolicy(true, false, nil, nil, nil)
	if !p.ShouldReadThrough("anydb") {
		t.Fatalf("expected global read-through flag to apply to any database")
	}
}

func TestPolicyShouldReadThroughPerDatabase(t *testing.T) {
	p := NewPolicy(false, false, []string{"reports"}, nil, nil)
	if !p.ShouldReadThrough("reports") {
		t.Fatalf("expected reports to read through")
	}
	if p.ShouldReadThrough("other") {
		t.Fatalf("expected other to not read through")
	}
}

func TestPolicyIsReadOnly(t *testing.T) {
	p := NewPolicy(false, false, nil, []string{"legacy"}, nil)
	if !p.IsReadOnly("legacy") {
		t.Fatalf("expected legacy to be read-only")
	}
	if p.IsReadOnly("other") {
		t.Fatalf("expected other to not be read-only")
	}
}

func TestPolicyMapDB(t *testing.T) {
	p := NewPolicy(false, false, nil, nil, map[string]string{"mydb": "legacy_db"})
	if got := p.MapDB("mydb"); got != "legacy_db" {
		t.Fatalf("expected mydb to map to legacy_db, got %s", got)
	}
	if got := p.MapDB("other"); got != "other" {
		t.Fatalf("expected unmapped db to pass through unchanged, got %s", got)
	}
}

func TestNilPolicyIsInert(t *testing.T) {
	var p *Policy
	if p.ShouldReadThrough("db") || p.IsReadOnly("db") {
		t.Fatalf("expected a nil policy to never read through or be read-only")
	}
	if got := p.MapDB("db"); got != "db" {
		t.Fatalf("expected a nil policy to pass db names through unchanged, got %s", got)
	}
}
