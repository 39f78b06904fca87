package scenario

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ericsun2/hark-lang/controller"
	"github.com/ericsun2/hark-lang/controller/memory"
	"github.com/ericsun2/hark-lang/controller/remote"
)

// TestFixtures loads every YAML suite under testdata/ and runs each one
// against both controller implementations, proving spec.md §9's "the same
// sequence of API calls must produce identical program results in either
// mode" — the way the teacher's TestConformance walks LoadAllTests and
// groups results by file as subtests.
func TestFixtures(t *testing.T) {
	suites, err := LoadDir(filepath.Join("testdata"))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(suites) == 0 {
		t.Fatal("no fixtures loaded")
	}

	backends := []struct {
		name    string
		factory ControllerFactory
	}{
		{"memory", func() controller.Controller { return memory.New() }},
		{"remote", func() controller.Controller { return remote.New() }},
	}

	ctx := context.Background()
	for _, backend := range backends {
		backend := backend
		t.Run(backend.name, func(t *testing.T) {
			runner := NewRunner(backend.factory)
			for _, suite := range suites {
				suite := suite
				t.Run(suite.Name, func(t *testing.T) {
					results, err := runner.RunSuite(ctx, suite)
					if err != nil {
						t.Fatalf("RunSuite: %v", err)
					}
					for _, res := range results {
						res := res
						t.Run(res.Test, func(t *testing.T) {
							if !res.Passed {
								t.Errorf("%v", res.Err)
							}
						})
					}
				})
			}
		})
	}
}
