package version_test

import (
	"encoding/json"
	"testing"

	// Packages
	version "github.com/mutablelogic/go-collect/pkg/version"
)

func TestVersion(t *testing.T) {
	if v := version.Version(); v == "" {
		t.Error("expected a non-empty version")
	}
}

func TestJSON(t *testing.T) {
	var metadata map[string]string
	if err := json.Unmarshal(version.JSON("collect"), &metadata); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if metadata["name"] != "collect" {
		t.Errorf("expected name collect, got %q", metadata["name"])
	}
	if metadata["version"] == "" {
		t.Error("expected a version field")
	}
	if metadata["compiler"] == "" {
		t.Error("expected a compiler field")
	}
	if metadata["platform"] == "" {
		t.Error("expected a platform field")
	}
}
