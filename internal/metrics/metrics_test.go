package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/learningequality/bundlegen/internal/metrics"
)

func TestWriteFile(t *testing.T) {
	metrics.DescriptorCount.Inc()
	metrics.ViolationCount.WithLabelValues("warning").Add(2)

	path := filepath.Join(t.TempDir(), "bundlegen.prom")
	if err := metrics.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, exp := range []string{"bundlegen_descriptor_count", `bundlegen_violation_count{severity="warning"}`} {
		if !strings.Contains(string(bs), exp) {
			t.Fatalf("expected %q in metrics output, got:\n%s", exp, bs)
		}
	}
}

func TestWriteFileError(t *testing.T) {
	if err := metrics.WriteFile(filepath.Join(t.TempDir(), "missing", "out.prom")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
