package objstore

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/crypto/openpgp" //nolint:staticcheck
)

// SignatureVerifier checks a detached OpenPGP signature against a root
// object's content — the do_verify pass-through a Store.Verify
// implementation can delegate to. It is the one concrete Verify backend
// this module ships; callers that don't need signature checking use
// NopStore instead.
type SignatureVerifier struct {
	keyring openpgp.EntityList
}

// NewSignatureVerifier builds a verifier from an armored public keyring.
func NewSignatureVerifier(armoredKeyRing string) (*SignatureVerifier, error) {
	if armoredKeyRing == "" {
		return nil, fmt.Errorf("objstore: keyring cannot be empty")
	}

	keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredKeyRing))
	if err != nil {
		return nil, fmt.Errorf("objstore: reading keyring: %w", err)
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("objstore: keyring contains no keys")
	}

	return &SignatureVerifier{keyring: keyring}, nil
}

// VerifyDetached checks signature (an armored detached OpenPGP signature,
// as found trailing a signed tag or commit object) against content. It
// returns nil only if the signature was produced by a key in the
// verifier's keyring.
func (v *SignatureVerifier) VerifyDetached(content, signature []byte) error {
	_, err := openpgp.CheckArmoredDetachedSignature(
		v.keyring,
		bytes.NewReader(content),
		bytes.NewReader(signature),
	)
	return err
}
