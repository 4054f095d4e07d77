package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SuiteResult contains the results of running a directory of scenarios.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "" when absent
	Errors []string `json:"errors,omitempty"`
}

// FindScenarios returns the YAML scenario files under dir, optionally
// filtered by a glob on the file name without extension. Golden
// directories are skipped.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// GoldenPath returns the CSV golden file of a scenario file:
// <dir>/golden/<name>.golden.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// RunFile loads and runs one scenario file. Config files resolve relative
// to the scenario. When a golden file exists the CSV output must match it;
// with update set the golden file is rewritten instead.
func RunFile(path string, update bool) ScenarioResult {
	res := ScenarioResult{Name: filepath.Base(path), Path: path}

	scenario, err := LoadScenarioWithBasePath(path, filepath.Dir(path))
	if err != nil {
		res.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return res
	}
	res.Name = scenario.Name

	result, err := Run(scenario)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return res
	}
	res.Errors = result.Errors

	goldenPath := GoldenPath(path)
	if update {
		if err := writeGolden(goldenPath, result.CSV); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return res
		}
		res.Golden = "updated"
	} else if want, err := os.ReadFile(goldenPath); err == nil {
		if !bytes.Equal(want, result.CSV) {
			res.Errors = append(res.Errors, "CSV output does not match golden file")
			return res
		}
		res.Golden = "match"
	} else if !os.IsNotExist(err) {
		res.Errors = append(res.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		return res
	}

	res.Pass = len(res.Errors) == 0
	return res
}

// RunSuite runs every scenario file and tallies the outcome.
func RunSuite(paths []string, update bool) *SuiteResult {
	suite := &SuiteResult{
		Scenarios: make([]ScenarioResult, 0, len(paths)),
		Total:     len(paths),
	}
	for _, p := range paths {
		res := RunFile(p, update)
		suite.Scenarios = append(suite.Scenarios, res)
		if res.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
	}
	return suite
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
