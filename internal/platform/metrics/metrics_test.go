package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteTextfile(t *testing.T) {
	Register()
	Register()

	OrdersProcessed.WithLabelValues("consolidate", "matched").Add(3)
	ConsolidationGroups.Set(2)

	path := filepath.Join(t.TempDir(), "routeprep.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(b)
	for _, want := range []string{
		`routeprep_orders_total{outcome="matched",phase="consolidate"} 3`,
		"routeprep_consolidation_groups 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	if err := WriteTextfile(""); err != nil {
		t.Fatalf("empty path must be a no-op, got %v", err)
	}
}
