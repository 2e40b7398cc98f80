package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScaffold_WritesAllTemplateFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "init")
	if err := Scaffold(dir); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"config.toml", "proxies.txt", "wallets.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}
}

func TestScaffold_ConfigTOMLHasRequiredField(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "init")
	if err := Scaffold(dir); err != nil {
		t.Fatal(err)
	}
	body, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(body) == 0 {
		t.Fatal("expected a non-empty config.toml")
	}
	if !strings.Contains(string(body), "https://testnet-rpc.example.invalid") {
		t.Fatalf("expected config.toml to carry the scaffolded rpc_url, got %q", body)
	}
}

func TestCopyTemplate_DuplicatesDirectoryContents(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	if err := Scaffold(src); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "dst")
	if err := CopyTemplate(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dst, "config.toml")); err != nil {
		t.Fatalf("expected copied config.toml: %v", err)
	}
}
