// Package wallet implements the wallet collaborator interface spec.md
// §6 assumes: decrypted signing keys are yielded on demand, and the
// core never inspects raw key material. Encrypted-wallet file format
// and key derivation are explicitly a Non-goal (spec.md §2); this
// package loads keys already in decrypted hex form and exists only to
// give C4 something concrete to range over.
package wallet

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/sha3"

	"github.com/kardelitaitu/testnet-spammer/internal/errclass"
)

// Identity is one wallet entity from spec.md §3: an opaque signing
// handle plus a stable on-chain address and process-lifetime index.
// The core never dereferences key beyond passing it to a task's signer;
// this package does not implement transaction signing itself, since
// key derivation and signing are explicitly out of the core's scope
// (spec.md §2's Non-goals).
type Identity struct {
	Index   int
	Address string
	key     []byte
}

// KeyHandle returns the opaque signing key reference, to be handed to a
// task's own signer collaborator. Exposed as a narrow accessor rather
// than a public field so callers can't casually log or serialize it.
func (w Identity) KeyHandle() []byte { return w.key }

// Source is the wallet collaborator interface (spec.md §6's
// load_wallets()).
type Source interface {
	LoadWallets() ([]Identity, error)
}

type hexWalletEntry struct {
	Address       string `json:"address"`
	PrivateKeyHex string `json:"private_key_hex"`
}

type hexKeyFile struct {
	Wallets []hexWalletEntry `json:"wallets"`
}

// HexFileSource loads decrypted private keys from a JSON file, the
// simplest possible stand-in for the decrypted-key collaborator the
// spec assumes already exists upstream of this system.
type HexFileSource struct {
	Path string
}

// LoadWallets implements Source. When an entry omits its address, one
// is derived deterministically from the key material via Keccak-256 so
// tests and synthetic fixtures don't need to hand-compute one; this is
// a convenience for this system only and is not a claim of EVM address
// derivation compatibility (that derivation lives upstream of the
// Non-goal boundary spec.md §2 draws).
func (s HexFileSource) LoadWallets() ([]Identity, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, errclass.Wrap(errclass.Configuration, err)
	}
	var f hexKeyFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errclass.Wrap(errclass.Configuration, fmt.Errorf("malformed wallet file: %w", err))
	}
	if len(f.Wallets) == 0 {
		return nil, errclass.Wrap(errclass.Configuration, fmt.Errorf("wallet file %s declares no wallets", s.Path))
	}

	identities := make([]Identity, 0, len(f.Wallets))
	for i, w := range f.Wallets {
		keyBytes, err := hex.DecodeString(trimHexPrefix(w.PrivateKeyHex))
		if err != nil {
			return nil, errclass.Wrap(errclass.Configuration, fmt.Errorf("wallet %d: bad private_key_hex: %w", i, err))
		}
		if len(keyBytes) == 0 {
			return nil, errclass.Wrap(errclass.Configuration, fmt.Errorf("wallet %d: empty private key", i))
		}

		addr := w.Address
		if addr == "" {
			addr = deriveAddress(keyBytes)
		}

		identities = append(identities, Identity{
			Index:   i,
			Address: addr,
			key:     keyBytes,
		})
	}
	return identities, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func deriveAddress(keyBytes []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(keyBytes)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[len(sum)-20:])
}
