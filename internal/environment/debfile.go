package environment

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ralt/swidgen/internal/models"
	"github.com/ralt/swidgen/internal/scanner"
	"github.com/ralt/swidgen/internal/utils"
	"github.com/sirupsen/logrus"
)

const arMagic = "!<arch>\n"

// errStopWalk ends an archive walk early without reporting an error
var errStopWalk = errors.New("stop walk")

// PackageInfoFromFile reads the control file of a .deb archive
func (d *Dpkg) PackageInfoFromFile(ctx context.Context, path string) (*models.Package, error) {
	if err := expectPackageType(path, scanner.TypeDeb); err != nil {
		return nil, err
	}

	var pkg *models.Package
	err := walkDeb(path, func(name string, r io.Reader) error {
		if !strings.HasPrefix(name, "control.tar") {
			return nil
		}

		control, _, err := readControlTar(name, r)
		if err != nil {
			return err
		}
		if pkg, err = parseControl(control); err != nil {
			return err
		}
		return errStopWalk
	})
	if err != nil {
		return nil, parseError(path, err)
	}
	if pkg == nil || pkg.Name == "" {
		return nil, parseError(path, fmt.Errorf("control file not found in package"))
	}

	return pkg, nil
}

// FilesFromPackageFile lists the regular files of a .deb archive, measuring
// size and all supported digests while reading the data member
func (d *Dpkg) FilesFromPackageFile(ctx context.Context, path string) ([]models.File, error) {
	if err := expectPackageType(path, scanner.TypeDeb); err != nil {
		return nil, err
	}

	var files []models.File
	conffiles := make(map[string]bool)

	err := walkDeb(path, func(name string, r io.Reader) error {
		switch {
		case strings.HasPrefix(name, "control.tar"):
			_, paths, err := readControlTar(name, r)
			if err != nil {
				return err
			}
			for _, p := range paths {
				conffiles[p] = true
			}
		case strings.HasPrefix(name, "data.tar"):
			var err error
			files, err = readDataTar(name, r)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, parseError(path, err)
	}

	for i := range files {
		files[i].Mutable = conffiles[files[i].FullPath]
	}

	logrus.Debugf("Read %d files from %s", len(files), path)
	return files, nil
}

// walkDeb calls fn for every member of the ar container of a .deb
func walkDeb(path string, fn func(name string, r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)

	// .deb files are ar archives starting with "!<arch>\n"
	magic := make([]byte, len(arMagic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != arMagic {
		return fmt.Errorf("not an ar archive")
	}

	for {
		// Read ar header (60 bytes)
		arHeader := make([]byte, 60)
		if _, err := io.ReadFull(br, arHeader); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read ar header: %w", err)
		}

		// Parse filename (first 16 bytes, space-padded), trimming the
		// trailing slash GNU ar may include
		name := strings.TrimRight(strings.TrimSpace(string(arHeader[0:16])), "/")

		// Parse file size (bytes 48-58, decimal)
		size, err := strconv.ParseInt(strings.TrimSpace(string(arHeader[48:58])), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ar member size for %s: %w", name, err)
		}

		member := io.LimitReader(br, size)
		if err := fn(name, member); err != nil {
			if err == errStopWalk {
				return nil
			}
			return err
		}

		// Skip whatever fn did not consume
		if _, err := io.Copy(io.Discard, member); err != nil {
			return err
		}

		// Align to 2-byte boundary
		if size%2 != 0 {
			if _, err := br.Discard(1); err != nil && err != io.EOF {
				return err
			}
		}
	}
}

// readControlTar returns the control file and the conffile paths from control.tar*
func readControlTar(name string, r io.Reader) ([]byte, []string, error) {
	dr, err := utils.Decompress(name, r)
	if err != nil {
		return nil, nil, err
	}
	defer dr.Close()

	var control []byte
	var conffiles []string

	tr := tar.NewReader(dr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		switch strings.TrimPrefix(header.Name, "./") {
		case "control":
			if control, err = io.ReadAll(tr); err != nil {
				return nil, nil, err
			}
		case "conffiles":
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, nil, err
			}
			conffiles = parseConffiles(data)
		}
	}

	if control == nil {
		return nil, nil, fmt.Errorf("control file not found in %s", name)
	}
	return control, conffiles, nil
}

// parseConffiles parses a conffiles member. Lines may carry flags such as
// "remove-on-upgrade" before the path.
func parseConffiles(data []byte) []string {
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		paths = append(paths, fields[len(fields)-1])
	}
	return paths
}

// readDataTar lists the regular files of data.tar*, hashing their content.
// Hard links are regular files once installed and share their target's
// measurements.
func readDataTar(name string, r io.Reader) ([]models.File, error) {
	dr, err := utils.Decompress(name, r)
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	links := newHardLinks()

	tr := tar.NewReader(dr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch header.Typeflag {
		case tar.TypeReg:
			file, err := measuredFile(archivePath(header.Name), tr)
			if err != nil {
				return nil, fmt.Errorf("failed to hash %s: %w", header.Name, err)
			}
			links.add(file)
		case tar.TypeLink:
			if err := links.link(archivePath(header.Name), archivePath(header.Linkname)); err != nil {
				return nil, err
			}
		}
	}

	return links.files, nil
}

// hardLinks collects the regular files of a tar stream, resolving hard link
// members against the files read before them
type hardLinks struct {
	files  []models.File
	byPath map[string]int
}

func newHardLinks() *hardLinks {
	return &hardLinks{byPath: make(map[string]int)}
}

func (h *hardLinks) add(file models.File) {
	h.byPath[file.FullPath] = len(h.files)
	h.files = append(h.files, file)
}

// link adds path as a copy of the already measured target
func (h *hardLinks) link(path, target string) error {
	i, ok := h.byPath[target]
	if !ok {
		return fmt.Errorf("hard link %s points to unknown member %s", path, target)
	}

	file := models.NewFile(path)
	file.Size = h.files[i].Size
	file.Digests = h.files[i].Digests
	h.add(file)
	return nil
}

// parseControl parses the Debian control file format
func parseControl(data []byte) (*models.Package, error) {
	pkg := &models.Package{Status: "installed"}

	sc := bufio.NewScanner(bytes.NewReader(data))
	var currentKey string
	var currentValue strings.Builder

	for sc.Scan() {
		line := sc.Text()

		// Handle continuation lines (start with space)
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			currentValue.WriteString("\n")
			currentValue.WriteString(strings.TrimSpace(line))
			continue
		}

		// Save previous key-value pair
		if currentKey != "" {
			setControlValue(pkg, currentKey, currentValue.String())
		}

		// Parse new key-value pair
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			currentKey = ""
			continue
		}
		currentKey = strings.TrimSpace(key)
		currentValue.Reset()
		currentValue.WriteString(strings.TrimSpace(value))
	}

	// Save last key-value pair
	if currentKey != "" {
		setControlValue(pkg, currentKey, currentValue.String())
	}

	return pkg, sc.Err()
}

// setControlValue sets a field in the Package based on the control file key
func setControlValue(pkg *models.Package, key, value string) {
	switch key {
	case "Package":
		pkg.Name = value
	case "Version":
		pkg.Version = value
	case "Architecture":
		pkg.Architecture = value
	}
}

// measuredFile builds a File for an archive member, streaming its content
// through every supported digest
func measuredFile(path string, r io.Reader) (models.File, error) {
	sum, err := utils.ChecksumReader(r, utils.SupportedAlgorithms)
	if err != nil {
		return models.File{}, err
	}

	file := models.NewFile(path)
	file.Size = sum.Size
	file.Digests = checksummedDigests(sum)
	return file, nil
}

// archivePath turns "./usr/bin/x" or "usr/bin/x" into "/usr/bin/x"
func archivePath(name string) string {
	return "/" + strings.TrimLeft(strings.TrimPrefix(name, "."), "/")
}

// expectPackageType fails unless path is a package archive of type want
func expectPackageType(path string, want scanner.PackageType) error {
	got, err := scanner.DetectPackageType(path)
	if err != nil {
		return &models.SwidError{
			Type:    models.ErrFileOp,
			Package: path,
			Err:     fmt.Errorf("failed to open package file: %w", err),
		}
	}
	if got != want {
		return &models.SwidError{
			Type:    models.ErrPackageParse,
			Package: path,
			Err:     fmt.Errorf("expected a %s package, got %s", want, got),
		}
	}
	return nil
}

func parseError(path string, err error) error {
	return &models.SwidError{
		Type:    models.ErrPackageParse,
		Package: path,
		Err:     err,
	}
}
