package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/starsweep/internal/config"
)

func TestCatalogCommands(t *testing.T) {
	dataDir, global := isolate(t, "")

	out, err := executeRoot(t, withArgs(global, "catalog", "add", "https://Docs.Example.com/", "Example docs")...)
	if err != nil {
		t.Fatalf("add: unexpected error: %v", err)
	}
	if !strings.Contains(out, "Added docs-example-com (https://docs.example.com)") {
		t.Errorf("add: unexpected output %q", out)
	}

	out, err = executeRoot(t, withArgs(global, "catalog", "add", "https://other.dev", "--alias", "other")...)
	if err != nil {
		t.Fatalf("add with alias: unexpected error: %v", err)
	}
	if !strings.Contains(out, "Added other") {
		t.Errorf("add with alias: unexpected output %q", out)
	}

	out, err = executeRoot(t, withArgs(global, "catalog", "add", "https://docs.example.com")...)
	if err != nil {
		t.Fatalf("duplicate add: unexpected error: %v", err)
	}
	if !strings.Contains(out, "already in the catalog") {
		t.Errorf("duplicate add: unexpected output %q", out)
	}

	listing, err := os.ReadFile(filepath.Join(dataDir, config.ListingFileName))
	if err != nil {
		t.Fatalf("listing not written: %v", err)
	}
	if !strings.Contains(string(listing), "docs-example-com") || !strings.Contains(string(listing), "other") {
		t.Errorf("listing is missing entries: %s", listing)
	}
	if _, err := os.Stat(filepath.Join(dataDir, config.MirrorFileName)); err != nil {
		t.Errorf("mirror not created: %v", err)
	}

	out, err = executeRoot(t, withArgs(global, "catalog", "list", "--format", "json")...)
	if err != nil {
		t.Fatalf("list: unexpected error: %v", err)
	}
	var entries []struct {
		Alias       string `json:"alias"`
		URL         string `json:"url"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	if len(entries) != 2 || entries[0].Alias != "docs-example-com" || entries[1].Alias != "other" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Description != "Example docs" {
		t.Errorf("description = %q, want %q", entries[0].Description, "Example docs")
	}
	if entries[1].Description == "" {
		t.Error("expected a fallback description")
	}

	out, err = executeRoot(t, withArgs(global, "catalog", "list", "--mirror", "--format", "json")...)
	if err != nil {
		t.Fatalf("list --mirror: unexpected error: %v", err)
	}
	var mirrored []struct {
		Alias string `json:"alias"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal([]byte(out), &mirrored); err != nil {
		t.Fatalf("list --mirror output is not JSON: %v\n%s", err, out)
	}
	if len(mirrored) != 2 || mirrored[0].Alias != "docs-example-com" || mirrored[1].URL != "https://other.dev" {
		t.Errorf("unexpected mirrored entries: %+v", mirrored)
	}

	out, err = executeRoot(t, withArgs(global, "catalog", "rm", "other")...)
	if err != nil {
		t.Fatalf("remove: unexpected error: %v", err)
	}
	if !strings.Contains(out, "Removed other") {
		t.Errorf("remove: unexpected output %q", out)
	}

	if _, err := executeRoot(t, withArgs(global, "catalog", "remove", "other")...); err == nil {
		t.Error("expected an error removing a missing alias")
	}

	out, err = executeRoot(t, withArgs(global, "catalog", "list")...)
	if err != nil {
		t.Fatalf("list: unexpected error: %v", err)
	}
	if strings.Contains(out, "other.dev") || !strings.Contains(out, "1 sites") {
		t.Errorf("unexpected text listing: %q", out)
	}
}

func TestCatalogAddRejectsNonURL(t *testing.T) {
	_, global := isolate(t, "")

	_, err := executeRoot(t, withArgs(global, "catalog", "add", "ftp://example.com")...)
	if err == nil || !strings.Contains(err.Error(), "not a site URL") {
		t.Errorf("expected a URL error, got %v", err)
	}
}

func TestCatalogListUnknownFormat(t *testing.T) {
	_, global := isolate(t, "")

	if _, err := executeRoot(t, withArgs(global, "catalog", "list", "-f", "xml")...); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestCatalogListMirrorMissing(t *testing.T) {
	_, global := isolate(t, "")

	_, err := executeRoot(t, withArgs(global, "catalog", "list", "--mirror")...)
	if err == nil || !strings.Contains(err.Error(), "mirror database not found") {
		t.Errorf("expected a missing mirror error, got %v", err)
	}
}

func TestExplicitConfigMustExist(t *testing.T) {
	_, global := isolate(t, "")

	_, err := executeRoot(t, "catalog", "list", "--config", filepath.Join(t.TempDir(), "missing.yaml"), global[2], global[3])
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}
