package environment

import (
	"context"
	"strings"

	"github.com/ralt/swidgen/internal/models"
	"github.com/sirupsen/logrus"
)

const dpkgQuery = "dpkg-query"

// dpkgPackageFormat emits name, version, status and conffiles per package,
// newline separated, with a tab terminating every package
const dpkgPackageFormat = `-f=${Package}\n${Version}\n${Status}\n${conffiles}\t`

// dpkgInstalledStates maps known status strings to their installed state.
// Unknown states are treated as installed.
var dpkgInstalledStates = map[string]bool{
	"install ok installed":      true,
	"deinstall ok config-files": false,
}

// Dpkg implements Environment for distributions using dpkg (Debian, Ubuntu, Mint)
type Dpkg struct {
	Host
	runner CommandRunner
}

// NewDpkg creates a new dpkg environment
func NewDpkg(runner CommandRunner) *Dpkg {
	return &Dpkg{
		Host:   DefaultHost(),
		runner: runner,
	}
}

// Name returns the environment name
func (d *Dpkg) Name() string {
	return "dpkg"
}

// PackageList returns all installed packages with their conffiles
func (d *Dpkg) PackageList(ctx context.Context) ([]*models.Package, error) {
	data, err := d.runner.Run(ctx, dpkgQuery, "-W", dpkgPackageFormat)
	if err != nil {
		return nil, queryError("", err)
	}

	var installed []*models.Package
	for _, pkg := range parseDpkgPackageList(string(data)) {
		if dpkgPackageInstalled(pkg) {
			installed = append(installed, pkg)
		} else {
			logrus.Debugf("Skipping %s (%s)", pkg.Name, pkg.Status)
		}
	}

	logrus.Debugf("dpkg reported %d installed packages", len(installed))
	return installed, nil
}

// parseDpkgPackageList parses the output of dpkgPackageFormat
func parseDpkgPackageList(data string) []*models.Package {
	var packages []*models.Package

	for _, record := range strings.Split(data, "\t") {
		fields := strings.Split(strings.TrimLeft(record, "\n"), "\n")
		if len(fields) < 4 {
			continue
		}

		pkg := &models.Package{
			Name:    fields[0],
			Version: fields[1],
			Status:  fields[2],
		}

		// Every remaining non-blank line is a conffile
		for _, line := range fields[3:] {
			if strings.TrimSpace(line) == "" {
				continue
			}
			file := models.NewFile(line)
			file.Mutable = true
			pkg.Files = append(pkg.Files, file)
		}

		packages = append(packages, pkg)
	}

	return packages
}

// dpkgPackageInstalled reports whether pkg is installed. If the state
// cannot be determined with certainty the package is assumed installed.
func dpkgPackageInstalled(pkg *models.Package) bool {
	installed, known := dpkgInstalledStates[pkg.Status]
	if !known {
		return true
	}
	return installed
}

// FilesForPackage returns the regular files owned by pkg
func (d *Dpkg) FilesForPackage(ctx context.Context, pkg *models.Package) ([]models.File, error) {
	data, err := d.runner.Run(ctx, dpkgQuery, "-L", pkg.Name)
	if err != nil {
		return nil, queryError(pkg.Name, err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	files := collectFiles(pkg, "", lines)

	logrus.Debugf("dpkg listed %d files for %s", len(files), pkg.Name)
	return files, nil
}
