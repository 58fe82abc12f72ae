package uuid

import "testing"

func TestNewIDProducesUniqueValues(t *testing.T) {
	t.Parallel()

	gen := New()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := gen.NewID()
		if err != nil {
			t.Fatalf("NewID() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
