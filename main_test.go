package main

import (
	"testing"

	"integrationhub/cmd"
)

func TestVersionDefault(t *testing.T) {
	if version != "dev" {
		t.Errorf("expected default version to be 'dev', got %s", version)
	}
}

func TestSetVersionDoesNotPanic(t *testing.T) {
	for _, v := range []string{"dev", "1.0.0", "v2.1.0-beta"} {
		cmd.SetVersion(v)
	}
}
