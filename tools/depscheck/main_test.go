package main

import (
	"strings"
	"testing"
)

func TestViolationsFlagsForbiddenImports(t *testing.T) {
	input := `{"ImportPath":"silver-moon/server/internal/sim","Imports":["silver-moon/server/internal/content","silver-moon/server/internal/net/proto"]}
{"ImportPath":"silver-moon/server/internal/lobby","Imports":["silver-moon/server/internal/net/proto"]}
{"ImportPath":"silver-moon/server/internal/simulator","Imports":["silver-moon/server/internal/lobby"]}`

	pkgs, err := decodePackages(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(pkgs) != 3 {
		t.Fatalf("expected 3 packages, got %d", len(pkgs))
	}

	found := violations(pkgs, layering)
	if len(found) != 1 {
		t.Fatalf("expected exactly one violation, got %v", found)
	}
	if found[0] != "silver-moon/server/internal/sim -> silver-moon/server/internal/net/proto" {
		t.Fatalf("unexpected violation %q", found[0])
	}
}
