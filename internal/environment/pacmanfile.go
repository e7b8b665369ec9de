package environment

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/mholt/archives"
	"github.com/ralt/swidgen/internal/models"
	"github.com/ralt/swidgen/internal/scanner"
	"github.com/sirupsen/logrus"
)

const pkginfoName = ".PKGINFO"

// PackageInfoFromFile reads the .PKGINFO of a pacman package archive
func (p *Pacman) PackageInfoFromFile(ctx context.Context, path string) (*models.Package, error) {
	var pkg *models.Package

	err := walkPacmanArchive(ctx, path, func(name string, info archives.FileInfo) error {
		if name != pkginfoName {
			return nil
		}

		data, err := readArchiveFile(info)
		if err != nil {
			return err
		}
		pkg, _ = parsePKGINFO(data)
		return errStopWalk
	})
	if err != nil {
		return nil, err
	}
	if pkg == nil || pkg.Name == "" {
		return nil, parseError(path, fmt.Errorf(".PKGINFO not found in package"))
	}

	return pkg, nil
}

// FilesFromPackageFile lists the regular files of a pacman package archive,
// marking the backup entries of .PKGINFO as mutable
func (p *Pacman) FilesFromPackageFile(ctx context.Context, path string) ([]models.File, error) {
	links := newHardLinks()
	var backup []string

	err := walkPacmanArchive(ctx, path, func(name string, info archives.FileInfo) error {
		if name == pkginfoName {
			data, err := readArchiveFile(info)
			if err != nil {
				return err
			}
			_, backup = parsePKGINFO(data)
			return nil
		}

		// Skip .MTREE, .BUILDINFO, .INSTALL and other metadata members
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if hdr, ok := info.Header.(*tar.Header); ok && hdr.Typeflag == tar.TypeLink {
			return links.link("/"+name, "/"+strings.TrimPrefix(hdr.Linkname, "./"))
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := info.Open()
		if err != nil {
			return err
		}
		defer f.Close()

		file, err := measuredFile("/"+name, f)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", name, err)
		}
		links.add(file)
		return nil
	})
	if err != nil {
		return nil, err
	}

	files := links.files
	mutable := make(map[string]bool, len(backup))
	for _, b := range backup {
		mutable["/"+strings.TrimLeft(b, "/")] = true
	}
	for i := range files {
		files[i].Mutable = mutable[files[i].FullPath]
	}

	logrus.Debugf("Read %d files from %s", len(files), path)
	return files, nil
}

// walkPacmanArchive calls fn for every member of a compressed pacman archive
func walkPacmanArchive(ctx context.Context, path string, fn func(name string, info archives.FileInfo) error) error {
	if err := expectPackageType(path, scanner.TypePacman); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return &models.SwidError{Type: models.ErrFileOp, Package: path, Err: err}
	}
	defer f.Close()

	format, stream, err := archives.Identify(ctx, path, f)
	if err != nil {
		return parseError(path, fmt.Errorf("failed to identify archive: %w", err))
	}

	extractor, ok := format.(archives.Extractor)
	if !ok {
		return parseError(path, fmt.Errorf("unsupported archive format %s", format.Extension()))
	}

	err = extractor.Extract(ctx, stream, func(ctx context.Context, info archives.FileInfo) error {
		err := fn(strings.TrimPrefix(info.NameInArchive, "./"), info)
		if errors.Is(err, errStopWalk) {
			return fs.SkipAll
		}
		return err
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return parseError(path, err)
	}
	return nil
}

func readArchiveFile(info archives.FileInfo) ([]byte, error) {
	f, err := info.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// parsePKGINFO parses the .PKGINFO file content, returning the package and
// its backup paths
func parsePKGINFO(data []byte) (*models.Package, []string) {
	pkg := &models.Package{Status: "installed"}
	var backup []string

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "pkgname":
			pkg.Name = value
		case "pkgver":
			pkg.Version = value
		case "arch":
			pkg.Architecture = value
		case "backup":
			backup = append(backup, value)
		}
	}

	return pkg, backup
}
