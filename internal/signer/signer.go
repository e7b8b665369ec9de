// Package signer creates detached OpenPGP signatures for generated tags.
package signer

// Signer signs tag documents
type Signer interface {
	// SignDetached creates an armored detached signature (written as <tag>.asc)
	SignDetached(data []byte) ([]byte, error)

	// GetPublicKey returns the armored public key
	GetPublicKey() ([]byte, error)
}
