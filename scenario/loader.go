package scenario

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadDir reads every *.yaml file directly under dir and parses each as a
// TestSuite, the way the teacher's LoadAllTests walks its fixture tree.
func LoadDir(dir string) ([]TestSuite, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scenario: globbing %s: %w", dir, err)
	}

	suites := make([]TestSuite, 0, len(matches))
	for _, path := range matches {
		suite, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		suites = append(suites, suite)
	}
	return suites, nil
}

// LoadFile parses a single suite fixture.
func LoadFile(path string) (TestSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TestSuite{}, fmt.Errorf("scenario: reading %s: %w", path, err)
	}
	var suite TestSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("scenario: parsing %s: %w", path, err)
	}
	return suite, nil
}

// LoadProgramFile parses a bare program (imports + functions, no test
// cases) the way a host running a real program rather than a fixture
// would load it.
func LoadProgramFile(path string) (ProgramSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProgramSpec{}, fmt.Errorf("scenario: reading %s: %w", path, err)
	}
	var spec ProgramSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return ProgramSpec{}, fmt.Errorf("scenario: parsing %s: %w", path, err)
	}
	return spec, nil
}
