// Package environment abstracts the host package manager behind a common
// interface so that tags can be assembled the same way for every manager.
package environment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ralt/swidgen/internal/models"
	"github.com/ralt/swidgen/internal/utils"
	"github.com/sirupsen/logrus"
)

// Environment is a package manager that can be queried for installed software
type Environment interface {
	// Name returns the manager name (e.g. "dpkg")
	Name() string

	// OSString returns a best-effort label of the host OS, never failing
	OSString() string

	// Architecture returns the host CPU architecture, never failing
	Architecture() string

	// PackageList returns every installed package
	PackageList(ctx context.Context) ([]*models.Package, error)

	// FilesForPackage returns the regular files owned by pkg that are not
	// already part of pkg.Files
	FilesForPackage(ctx context.Context, pkg *models.Package) ([]models.File, error)
}

// ArchiveResolver is implemented by environments that can read package
// metadata straight from a package archive on disk
type ArchiveResolver interface {
	// PackageInfoFromFile returns the package described by the archive
	PackageInfoFromFile(ctx context.Context, path string) (*models.Package, error)

	// FilesFromPackageFile returns the regular files contained in the archive,
	// with size and digests already measured
	FilesFromPackageFile(ctx context.Context, path string) ([]models.File, error)
}

// CommandRunner runs package manager tools
type CommandRunner interface {
	// Run executes a command and returns its standard output
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// LookPath searches for an executable
	LookPath(file string) (string, error)
}

// ExecRunner implements CommandRunner with os/exec
type ExecRunner struct{}

// NewExecRunner creates a new command runner backed by os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns its standard output
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	logrus.Debugf("Running %s %s", name, strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(err, exec.ErrNotFound):
			return nil, &models.SwidError{
				Type: models.ErrEnvironmentUnavailable,
				Err:  fmt.Errorf("%s not found: %w", name, err),
			}
		case errors.As(err, &exitErr):
			return nil, &models.SwidError{
				Type: models.ErrQuery,
				Err:  fmt.Errorf("%s exited with %d: %s", name, exitErr.ExitCode(), strings.TrimSpace(stderr.String())),
			}
		default:
			return nil, &models.SwidError{
				Type: models.ErrQuery,
				Err:  fmt.Errorf("failed to run %s: %w", name, err),
			}
		}
	}

	return out, nil
}

// LookPath searches for an executable in PATH
func (r *ExecRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// manager describes how to construct one supported environment
type manager struct {
	name       string
	executable string
	build      func(runner CommandRunner) Environment
}

var managers = []manager{
	{"dpkg", dpkgQuery, func(r CommandRunner) Environment { return NewDpkg(r) }},
	{"rpm", rpmExecutable, func(r CommandRunner) Environment { return NewRpm(r) }},
	{"pacman", pacmanExecutable, func(r CommandRunner) Environment { return NewPacman(r) }},
}

// Names returns the names of all supported environments
func Names() []string {
	names := make([]string, 0, len(managers))
	for _, m := range managers {
		names = append(names, m.name)
	}
	return names
}

// Detect returns the first environment whose manager tool is available
func Detect(runner CommandRunner) (Environment, error) {
	for _, m := range managers {
		if _, err := runner.LookPath(m.executable); err == nil {
			logrus.Debugf("Detected %s package manager", m.name)
			return m.build(runner), nil
		}
	}

	return nil, &models.SwidError{
		Type: models.ErrEnvironmentUnavailable,
		Err:  fmt.Errorf("no supported package manager found (tried %s)", strings.Join(Names(), ", ")),
	}
}

// ByName returns the environment with the given name, or detects one if
// name is empty
func ByName(name string, runner CommandRunner) (Environment, error) {
	if name == "" {
		return Detect(runner)
	}

	for _, m := range managers {
		if m.name != name {
			continue
		}
		if _, err := runner.LookPath(m.executable); err != nil {
			return nil, &models.SwidError{
				Type: models.ErrEnvironmentUnavailable,
				Err:  fmt.Errorf("%s not available on this host: %w", m.executable, err),
			}
		}
		return m.build(runner), nil
	}

	return nil, &models.SwidError{
		Type: models.ErrInvalidConfig,
		Err:  fmt.Errorf("unknown environment %q (supported: %s)", name, strings.Join(Names(), ", ")),
	}
}

// collectFiles turns manager-reported paths into Files, keeping only regular
// files that pkg does not list yet. A non-empty root is where the paths are
// looked up on disk. Manifest paths carry no annotation, so the content is
// always read from the untruncated path even when the name is cut at
// whitespace.
func collectFiles(pkg *models.Package, root string, paths []string) []models.File {
	var files []models.File
	seen := make(map[string]bool)

	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" || seen[path] {
			continue
		}

		onDisk := path
		if root != "" && root != "/" {
			onDisk = filepath.Join(root, path)
		}
		if !utils.IsRegularFile(onDisk) {
			continue
		}
		if pkg.HasPath(path) {
			continue
		}

		seen[path] = true
		file := models.NewFile(path)
		if onDisk != file.Path() {
			file.ContentPath = onDisk
		}
		files = append(files, file)
	}

	return files
}

// queryError wraps a failed manager query with the package it concerns
func queryError(pkg string, err error) error {
	var se *models.SwidError
	if errors.As(err, &se) && se.Package == "" {
		return &models.SwidError{Type: se.Type, Package: pkg, Err: se.Err}
	}
	return &models.SwidError{Type: models.ErrQuery, Package: pkg, Err: err}
}

var (
	_ ArchiveResolver = (*Dpkg)(nil)
	_ ArchiveResolver = (*Rpm)(nil)
	_ ArchiveResolver = (*Pacman)(nil)
)
