package environment

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/swidgen/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	pacmanExecutable = "pacman"
	pacmanDBPath     = "/var/lib/pacman"
)

// Pacman implements Environment for Arch Linux and derivatives by reading
// the local pacman database
type Pacman struct {
	Host
	runner CommandRunner

	// DBPath is the pacman database root containing local/
	DBPath string

	// Root is where the package files are looked up on disk
	Root string
}

// NewPacman creates a new pacman environment
func NewPacman(runner CommandRunner) *Pacman {
	return &Pacman{
		Host:   DefaultHost(),
		runner: runner,
		DBPath: pacmanDBPath,
		Root:   "/",
	}
}

// Name returns the environment name
func (p *Pacman) Name() string {
	return "pacman"
}

// pacmanEntry holds the sections of a local database file
type pacmanEntry map[string][]string

// PackageList returns all packages of the local database with their backup files
func (p *Pacman) PackageList(ctx context.Context) ([]*models.Package, error) {
	if _, err := p.runner.LookPath(pacmanExecutable); err != nil {
		return nil, &models.SwidError{
			Type: models.ErrEnvironmentUnavailable,
			Err:  fmt.Errorf("%s not found: %w", pacmanExecutable, err),
		}
	}

	localDir := filepath.Join(p.DBPath, "local")
	entries, err := os.ReadDir(localDir)
	if err != nil {
		return nil, &models.SwidError{
			Type: models.ErrQuery,
			Err:  fmt.Errorf("failed to read pacman database: %w", err),
		}
	}

	var packages []*models.Package
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		desc, err := readPacmanEntry(filepath.Join(localDir, entry.Name(), "desc"))
		if err != nil {
			return nil, queryError(entry.Name(), err)
		}

		pkg := &models.Package{
			Name:         desc.first("NAME"),
			Version:      desc.first("VERSION"),
			Status:       "installed",
			Architecture: desc.first("ARCH"),
		}
		if pkg.Name == "" || pkg.Version == "" {
			return nil, queryError(entry.Name(), fmt.Errorf("desc is missing NAME or VERSION"))
		}

		// Backup files are kept in the files entry
		files, err := readPacmanEntry(filepath.Join(localDir, entry.Name(), "files"))
		if err != nil && !os.IsNotExist(err) {
			return nil, queryError(pkg.Name, err)
		}
		for _, line := range files["BACKUP"] {
			file := models.NewFile(p.absolute(line))
			file.Mutable = true
			if p.Root != "" && p.Root != "/" {
				file.ContentPath = filepath.Join(p.Root, file.Path())
			}
			pkg.Files = append(pkg.Files, file)
		}

		packages = append(packages, pkg)
	}

	logrus.Debugf("pacman reported %d installed packages", len(packages))
	return packages, nil
}

// FilesForPackage returns the regular files owned by pkg
func (p *Pacman) FilesForPackage(ctx context.Context, pkg *models.Package) ([]models.File, error) {
	path := filepath.Join(p.DBPath, "local", pkg.Name+"-"+pkg.Version, "files")
	entry, err := readPacmanEntry(path)
	if err != nil {
		return nil, queryError(pkg.Name, err)
	}

	var paths []string
	for _, line := range entry["FILES"] {
		// Directories are stored with a trailing slash
		if strings.HasSuffix(line, "/") {
			continue
		}
		paths = append(paths, p.absolute(line))
	}

	files := collectFiles(pkg, p.Root, paths)
	logrus.Debugf("pacman listed %d files for %s", len(files), pkg.Name)
	return files, nil
}

// absolute turns a database-relative path into an absolute one. The
// tab-separated md5 of backup lines is kept as annotation.
func (p *Pacman) absolute(rel string) string {
	return "/" + strings.TrimLeft(strings.Replace(rel, "\t", " ", 1), "/")
}

// readPacmanEntry parses the %SECTION% format of desc and files entries
func readPacmanEntry(path string) (pacmanEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	entry := make(pacmanEntry)
	var current string

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()

		// Field marker: %FIELDNAME%
		if len(line) > 2 && strings.HasPrefix(line, "%") && strings.HasSuffix(line, "%") {
			current = strings.Trim(line, "%")
			continue
		}

		if line == "" {
			current = ""
			continue
		}

		if current != "" {
			entry[current] = append(entry[current], line)
		}
	}

	return entry, sc.Err()
}

func (e pacmanEntry) first(key string) string {
	if values := e[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
