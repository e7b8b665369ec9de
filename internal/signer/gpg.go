package signer

import (
	"bytes"
	"crypto"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/ralt/swidgen/internal/models"
)

// GPGSigner implements Signer using an OpenPGP private key
type GPGSigner struct {
	entity *openpgp.Entity
}

// NewGPGSigner creates a new GPG signer from a private key file
func NewGPGSigner(keyPath, passphrase string) (*GPGSigner, error) {
	if keyPath == "" {
		return nil, signingError(fmt.Errorf("key path is empty"))
	}

	keyFile, err := os.Open(keyPath)
	if err != nil {
		return nil, signingError(fmt.Errorf("failed to open key file: %w", err))
	}
	defer keyFile.Close()

	// Try to parse as armored key first
	entityList, err := openpgp.ReadArmoredKeyRing(keyFile)
	if err != nil {
		// Try as binary key
		if _, serr := keyFile.Seek(0, io.SeekStart); serr != nil {
			return nil, signingError(serr)
		}
		entityList, err = openpgp.ReadKeyRing(keyFile)
		if err != nil {
			return nil, signingError(fmt.Errorf("failed to read key: %w", err))
		}
	}

	if len(entityList) == 0 {
		return nil, signingError(fmt.Errorf("no keys found in key file"))
	}

	entity := entityList[0]
	if entity.PrivateKey == nil {
		return nil, signingError(fmt.Errorf("key file %s holds no private key", keyPath))
	}

	if entity.PrivateKey.Encrypted {
		if passphrase == "" {
			return nil, signingError(fmt.Errorf("private key is encrypted and no passphrase was given"))
		}
		if err := entity.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
			return nil, signingError(fmt.Errorf("failed to decrypt private key: %w", err))
		}
	}

	// Decrypt subkeys as well
	for _, subkey := range entity.Subkeys {
		if subkey.PrivateKey != nil && subkey.PrivateKey.Encrypted && passphrase != "" {
			if err := subkey.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
				return nil, signingError(fmt.Errorf("failed to decrypt subkey: %w", err))
			}
		}
	}

	return &GPGSigner{entity: entity}, nil
}

// SignDetached creates an armored detached signature of data
func (s *GPGSigner) SignDetached(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	err := openpgp.ArmoredDetachSign(&buf, s.entity, bytes.NewReader(data), &packet.Config{
		DefaultHash: crypto.SHA512,
	})
	if err != nil {
		return nil, signingError(fmt.Errorf("failed to create detached signature: %w", err))
	}

	return buf.Bytes(), nil
}

// GetPublicKey returns the public key in armored format
func (s *GPGSigner) GetPublicKey() ([]byte, error) {
	var buf bytes.Buffer

	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}

	err = s.entity.Serialize(w)
	if err != nil {
		w.Close()
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func signingError(err error) error {
	return &models.SwidError{Type: models.ErrSigning, Err: err}
}
