package environment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ralt/swidgen/internal/models"
	"github.com/ralt/swidgen/internal/utils"
	"github.com/sirupsen/logrus"
)

const rpmExecutable = "rpm"

// rpmRecordSeparator terminates every package in the rpm -qa output
const rpmRecordSeparator = "\x1e"

const (
	rpmPackageFormat = "%{NAME}\n%{EPOCHNUM}:%{VERSION}-%{RELEASE}\n%{ARCH}" + rpmRecordSeparator
	rpmFilesFormat   = "[%{FILENAMES}\t%{FILEFLAGS}\n]"
)

// rpmFileConfig is the RPMFILE_CONFIG bit of FILEFLAGS
const rpmFileConfig = 1 << 0

// Rpm implements Environment for distributions using rpm (Fedora, RHEL, SUSE)
type Rpm struct {
	Host
	runner CommandRunner
}

// NewRpm creates a new rpm environment
func NewRpm(runner CommandRunner) *Rpm {
	return &Rpm{
		Host:   DefaultHost(),
		runner: runner,
	}
}

// Name returns the environment name
func (r *Rpm) Name() string {
	return "rpm"
}

// PackageList returns all installed packages. The rpm database only holds
// installed packages, so every record is reported as installed.
func (r *Rpm) PackageList(ctx context.Context) ([]*models.Package, error) {
	data, err := r.runner.Run(ctx, rpmExecutable, "-qa", "--queryformat", rpmPackageFormat)
	if err != nil {
		return nil, queryError("", err)
	}

	packages := parseRpmPackageList(string(data))
	logrus.Debugf("rpm reported %d installed packages", len(packages))
	return packages, nil
}

// parseRpmPackageList parses the output of rpmPackageFormat
func parseRpmPackageList(data string) []*models.Package {
	var packages []*models.Package

	for _, record := range strings.Split(data, rpmRecordSeparator) {
		fields := strings.Split(strings.Trim(record, "\n"), "\n")
		if len(fields) < 3 || fields[0] == "" {
			continue
		}

		packages = append(packages, &models.Package{
			Name:         fields[0],
			Version:      strings.TrimPrefix(fields[1], "0:"),
			Status:       "installed",
			Architecture: fields[2],
		})
	}

	return packages
}

// FilesForPackage returns the regular files owned by pkg, flagging config files
func (r *Rpm) FilesForPackage(ctx context.Context, pkg *models.Package) ([]models.File, error) {
	data, err := r.runner.Run(ctx, rpmExecutable, "-q", "--queryformat", rpmFilesFormat, rpmQueryKey(pkg))
	if err != nil {
		return nil, queryError(pkg.Name, err)
	}

	var paths []string
	config := make(map[string]bool)

	for _, line := range strings.Split(string(data), "\n") {
		path, flags, ok := strings.Cut(line, "\t")
		if !ok || path == "" {
			continue
		}

		n, err := strconv.Atoi(strings.TrimSpace(flags))
		if err != nil {
			return nil, queryError(pkg.Name, fmt.Errorf("invalid file flags %q for %s", flags, path))
		}
		if n&rpmFileConfig != 0 {
			config[path] = true
		}
		paths = append(paths, path)
	}

	files := collectFiles(pkg, "", paths)
	for i := range files {
		files[i].Mutable = config[files[i].FullPath]
	}

	logrus.Debugf("rpm listed %d files for %s", len(files), pkg.Name)
	return files, nil
}

// rpmQueryKey names exactly one installed instance of pkg, as
// name-version-release.arch. Several instances may share a name (kernels,
// multilib libraries).
func rpmQueryKey(pkg *models.Package) string {
	version := pkg.Version
	if epoch, rest, ok := strings.Cut(version, ":"); ok {
		if _, err := strconv.Atoi(epoch); err == nil {
			version = rest
		}
	}

	key := pkg.Name
	if version != "" {
		key += "-" + version
	}
	if pkg.Architecture != "" && pkg.Architecture != "(none)" {
		key += "." + pkg.Architecture
	}
	return key
}

// rpmVersion joins the version parts the way rpm -qa does, omitting a zero epoch
func rpmVersion(epoch int, version, release string) string {
	v := version
	if release != "" {
		v += "-" + release
	}
	if epoch > 0 {
		v = strconv.Itoa(epoch) + ":" + v
	}
	return v
}

// checksummedDigests converts utils digests to the map stored on Files
func checksummedDigests(sum *utils.Checksum) map[string]string {
	digests := make(map[string]string, len(sum.Digests))
	for alg, digest := range sum.Digests {
		digests[string(alg)] = digest
	}
	return digests
}
