package scanner

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// PackageType represents the type of a package archive
type PackageType int

const (
	TypeUnknown PackageType = iota
	TypeDeb
	TypeRpm
	TypePacman
)

// String returns the string representation of PackageType
func (pt PackageType) String() string {
	switch pt {
	case TypeDeb:
		return "deb"
	case TypeRpm:
		return "rpm"
	case TypePacman:
		return "pacman"
	default:
		return "unknown"
	}
}

// Magic bytes for package detection
var (
	// Debian packages start with "!<arch>\ndebian"
	debMagic = []byte("!<arch>\ndebian")

	// RPM packages start with 0xED 0xAB 0xEE 0xDB
	rpmMagic = []byte{0xED, 0xAB, 0xEE, 0xDB}

	// Gzip magic bytes
	gzipMagic = []byte{0x1F, 0x8B}

	// Zstandard magic bytes (Pacman packages .pkg.tar.zst)
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

	// XZ magic bytes (Pacman packages .pkg.tar.xz)
	xzMagic = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}
)

// DetectPackageType determines the package type based on magic bytes and file extension
func DetectPackageType(path string) (PackageType, error) {
	f, err := os.Open(path)
	if err != nil {
		return TypeUnknown, err
	}
	defer f.Close()

	// Read first 512 bytes for magic byte detection
	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return TypeUnknown, err
	}
	header = header[:n]

	ext := filepath.Ext(path)
	basename := filepath.Base(path)

	if bytes.HasPrefix(header, debMagic) || ext == ".deb" {
		return TypeDeb, nil
	}

	if bytes.HasPrefix(header, rpmMagic) || ext == ".rpm" {
		return TypeRpm, nil
	}

	// Pacman packages (.pkg.tar.zst, .pkg.tar.xz, .pkg.tar.gz, .pkg.tar)
	if strings.Contains(basename, ".pkg.tar") {
		switch {
		case bytes.HasPrefix(header, zstdMagic), strings.HasSuffix(basename, ".pkg.tar.zst"):
			return TypePacman, nil
		case bytes.HasPrefix(header, xzMagic), strings.HasSuffix(basename, ".pkg.tar.xz"):
			return TypePacman, nil
		case bytes.HasPrefix(header, gzipMagic) && strings.HasSuffix(basename, ".pkg.tar.gz"):
			return TypePacman, nil
		case strings.HasSuffix(basename, ".pkg.tar"):
			return TypePacman, nil
		}
	}

	return TypeUnknown, nil
}
