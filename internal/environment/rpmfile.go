package environment

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ralt/swidgen/internal/models"
	"github.com/ralt/swidgen/internal/scanner"
	"github.com/ralt/swidgen/internal/utils"
	"github.com/sassoftware/go-rpmutils"
	"github.com/sirupsen/logrus"
)

const (
	fileTypeMask    = 0170000
	fileTypeRegular = 0100000
)

// PackageInfoFromFile reads the header of an .rpm archive
func (r *Rpm) PackageInfoFromFile(ctx context.Context, path string) (*models.Package, error) {
	rpm, closeFn, err := openRpm(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	pkg := &models.Package{
		Name:         getStringTag(rpm, rpmutils.NAME),
		Status:       "installed",
		Architecture: getStringTag(rpm, rpmutils.ARCH),
	}
	pkg.Version = rpmVersion(
		int(getIntTag(rpm, rpmutils.EPOCH)),
		getStringTag(rpm, rpmutils.VERSION),
		getStringTag(rpm, rpmutils.RELEASE),
	)

	if pkg.Name == "" {
		return nil, parseError(path, fmt.Errorf("package name missing from header"))
	}
	return pkg, nil
}

// FilesFromPackageFile lists the regular files of an .rpm archive, hashing
// their content from the payload
func (r *Rpm) FilesFromPackageFile(ctx context.Context, path string) ([]models.File, error) {
	rpm, closeFn, err := openRpm(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	payload, err := rpm.PayloadReaderExtended()
	if err != nil {
		return nil, parseError(path, fmt.Errorf("failed to open payload: %w", err))
	}

	var files []models.File
	links := make(map[int]string)
	content := make(map[string]int)

	for {
		info, err := payload.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseError(path, fmt.Errorf("failed to read payload: %w", err))
		}
		if info.Mode()&fileTypeMask != fileTypeRegular {
			continue
		}

		file := models.NewFile(archivePath(info.Name()))
		file.Mutable = info.Flags()&rpmFileConfig != 0
		key := linkKey(info.Digest(), info.Size())

		// Members of a hard link set carry no content of their own
		if payload.IsLink() {
			links[len(files)] = key
			files = append(files, file)
			continue
		}

		sum, err := utils.ChecksumReader(payload, utils.SupportedAlgorithms)
		if err != nil {
			return nil, parseError(path, fmt.Errorf("failed to hash %s: %w", info.Name(), err))
		}

		file.Size = sum.Size
		file.Digests = checksummedDigests(sum)
		content[key] = len(files)
		files = append(files, file)
	}

	if err := resolveHardLinks(files, links, content); err != nil {
		return nil, parseError(path, err)
	}

	logrus.Debugf("Read %d files from %s", len(files), path)
	return files, nil
}

// resolveHardLinks copies size and digests into the hard link entries at the
// indexes in links from the entry holding their content
func resolveHardLinks(files []models.File, links map[int]string, content map[string]int) error {
	for i, key := range links {
		src, ok := content[key]
		if !ok {
			return fmt.Errorf("no content found for hard link %s", files[i].Path())
		}
		files[i].Size = files[src].Size
		files[i].Digests = files[src].Digests
	}
	return nil
}

// linkKey identifies the content of a payload file by its header digest
func linkKey(digest string, size int64) string {
	return fmt.Sprintf("%s:%d", digest, size)
}

// openRpm opens and validates an .rpm archive, returning the parsed header
func openRpm(path string) (*rpmutils.Rpm, func(), error) {
	if err := expectPackageType(path, scanner.TypeRpm); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &models.SwidError{Type: models.ErrFileOp, Package: path, Err: err}
	}

	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		f.Close()
		return nil, nil, parseError(path, fmt.Errorf("failed to read RPM: %w", err))
	}

	return rpm, func() { f.Close() }, nil
}

// getStringTag safely gets a string tag from RPM
func getStringTag(rpm *rpmutils.Rpm, tag int) string {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return ""
	}

	// Handle different types that might be returned
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	default:
		return fmt.Sprintf("%v", v)
	}

	return ""
}

// getIntTag safely gets an integer tag from RPM
func getIntTag(rpm *rpmutils.Rpm, tag int) int64 {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return 0
	}

	switch v := val.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case []int:
		if len(v) > 0 {
			return int64(v[0])
		}
	case []int32:
		if len(v) > 0 {
			return int64(v[0])
		}
	case []uint32:
		if len(v) > 0 {
			return int64(v[0])
		}
	}
	return 0
}
