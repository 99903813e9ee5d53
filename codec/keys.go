package codec

import (
	"fmt"

	"github.com/vedhavyas/go-subkey/v2"
	"github.com/vedhavyas/go-subkey/v2/sr25519"

	"github.com/availkit/go-node-client/entities"
)

// Keypair wraps an sr25519 keypair used for signing extrinsics.
type Keypair struct {
	kp subkey.KeyPair
}

// KeypairFromURI derives a keypair from a secret URI (mnemonic, seed, or a dev
// path like "//Alice").
func KeypairFromURI(uri string) (Keypair, error) {
	kp, err := subkey.DeriveKeyPair(sr25519.Scheme{}, uri)
	if err != nil {
		return Keypair{}, entities.NewUserInputError(fmt.Sprintf("deriving keypair: %v", err))
	}
	return Keypair{kp: kp}, nil
}

// Sign produces a 64 byte sr25519 signature over msg. The scheme randomizes
// signatures internally, so two signatures over the same message differ while
// both verifying.
func (k Keypair) Sign(msg []byte) ([]byte, error) {
	sig, err := k.kp.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("signing payload: %v", err)
	}
	return sig, nil
}

// Verify checks a signature produced by this keypair.
func (k Keypair) Verify(msg, sig []byte) bool {
	return k.kp.Verify(msg, sig)
}

// AccountID returns the public key as an on-chain account id.
func (k Keypair) AccountID() entities.AccountID {
	var a entities.AccountID
	copy(a[:], k.kp.AccountID())
	return a
}

// SS58Address formats the account for the given network prefix.
func (k Keypair) SS58Address(network uint16) string {
	return k.kp.SS58Address(network)
}
