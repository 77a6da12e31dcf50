package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestVersion_Human_ShowsVersionInfo(t *testing.T) {
	testEnv(t)

	output := mustRun(t, "version")

	for _, want := range []string{"agenda ", "commit:", "built:", "go:", "os:"} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q", want)
		}
	}
}

func TestVersion_JSON_ReturnsValidJSON(t *testing.T) {
	testEnv(t)

	output := mustRun(t, "version", "--json")

	var result map[string]any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("output should be valid JSON: %v", err)
	}
	for _, field := range []string{"version", "commit", "date", "go", "os", "arch"} {
		if _, ok := result[field]; !ok {
			t.Errorf("JSON should have %q field", field)
		}
	}
	if result["version"] != "dev" {
		t.Errorf("dev build JSON should have version='dev', got: %v", result["version"])
	}
}

func TestVersion_DevBuild_ShowsDev(t *testing.T) {
	testEnv(t)

	output := mustRun(t, "version")
	if !strings.Contains(output, "agenda dev") {
		t.Errorf("dev build should show 'agenda dev', got: %s", output)
	}
}
