package utils

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Algorithm is a supported file digest algorithm
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA384 Algorithm = "sha384"
	SHA512 Algorithm = "sha512"
)

// SupportedAlgorithms lists every algorithm in canonical order
var SupportedAlgorithms = []Algorithm{SHA256, SHA384, SHA512}

// Tag returns the upper-case label used as XML namespace prefix
func (a Algorithm) Tag() string {
	return strings.ToUpper(string(a))
}

// Namespace returns the XML namespace URI identifying the algorithm
func (a Algorithm) Namespace() string {
	switch a {
	case SHA256:
		return "http://www.w3.org/2001/04/xmlenc#sha256"
	case SHA384:
		return "http://www.w3.org/2001/04/xmldsig-more#sha384"
	case SHA512:
		return "http://www.w3.org/2001/04/xmlenc#sha512"
	default:
		return ""
	}
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case SHA384:
		return sha512.New384()
	case SHA512:
		return sha512.New()
	default:
		return sha256.New()
	}
}

// ParseAlgorithms parses a comma-separated algorithm list. Unknown entries
// are ignored and the result is de-duplicated in canonical order.
func ParseAlgorithms(list string) []Algorithm {
	wanted := make(map[Algorithm]bool)
	for _, part := range strings.Split(list, ",") {
		wanted[Algorithm(strings.ToLower(strings.TrimSpace(part)))] = true
	}

	var algs []Algorithm
	for _, a := range SupportedAlgorithms {
		if wanted[a] {
			algs = append(algs, a)
		}
	}
	return algs
}

// Checksum contains the requested digests and the size of some content
type Checksum struct {
	Digests map[Algorithm]string
	Size    int64
}

// ChecksumReader calculates the requested digests of r in a single pass
func ChecksumReader(r io.Reader, algs []Algorithm) (*Checksum, error) {
	hashes := make(map[Algorithm]hash.Hash, len(algs))
	writers := make([]io.Writer, 0, len(algs))
	for _, a := range algs {
		h := a.newHash()
		hashes[a] = h
		writers = append(writers, h)
	}

	// Use MultiWriter to calculate all hashes at once
	n, err := io.Copy(io.MultiWriter(writers...), r)
	if err != nil {
		return nil, err
	}

	sum := &Checksum{
		Digests: make(map[Algorithm]string, len(algs)),
		Size:    n,
	}
	for a, h := range hashes {
		sum.Digests[a] = hex.EncodeToString(h.Sum(nil))
	}
	return sum, nil
}

// Checksums calculates the requested digests of a file in a single pass
func Checksums(path string, algs []Algorithm) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if len(algs) == 0 {
		return &Checksum{Digests: map[Algorithm]string{}, Size: info.Size()}, nil
	}

	sum, err := ChecksumReader(f, algs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return sum, nil
}

// HashFile returns the lowercase hex digest of a file for one algorithm.
// It is the single-digest entry point of the hashing API; tag generation
// uses Checksums instead so that each file is read once for all algorithms.
func HashFile(path string, alg Algorithm) (string, error) {
	sum, err := Checksums(path, []Algorithm{alg})
	if err != nil {
		return "", err
	}
	return sum.Digests[alg], nil
}
