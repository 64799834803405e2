package anchorbet

import "testing"

func TestDirectionValues(t *testing.T) {
	if DirectionFor != "FOR" {
		t.Fatalf("expected FOR, got %s", DirectionFor)
	}
	if DirectionAgainst != "AGAINST" {
		t.Fatalf("expected AGAINST, got %s", DirectionAgainst)
	}
}

func TestNewStoreWrapsDB(t *testing.T) {
	s := NewStore(nil)
	if s == nil {
		t.Fatal("expected non-nil store")
	}
}
