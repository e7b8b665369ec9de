package environment

import (
	"archive/tar"
	"context"
	"path/filepath"
	"testing"

	"github.com/ralt/swidgen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pacmanDesc = `%NAME%
nano

%VERSION%
8.0-1

%BASE%
nano

%ARCH%
x86_64

%INSTALLDATE%
1717000000
`

const pacmanFiles = `%FILES%
etc/
etc/nanorc
usr/
usr/bin/
usr/bin/nano
usr/bin/rnano
usr/share/nano/c.nanorc

%BACKUP%
etc/nanorc	a6b1d8e0d7f5b3c2e1f0a9b8c7d6e5f4
`

func newTestPacman(t *testing.T) (*Pacman, string) {
	t.Helper()

	db := t.TempDir()
	root := t.TempDir()

	writeTestFile(t, filepath.Join(db, "local/nano-8.0-1/desc"), pacmanDesc)
	writeTestFile(t, filepath.Join(db, "local/nano-8.0-1/files"), pacmanFiles)
	writeTestFile(t, filepath.Join(db, "local/ALPM_DB_VERSION"), "9\n")

	writeTestFile(t, filepath.Join(root, "etc/nanorc"), "set autoindent\n")
	writeTestFile(t, filepath.Join(root, "usr/bin/nano"), "nano")
	writeTestFile(t, filepath.Join(root, "usr/share/nano/c.nanorc"), "syntax c")

	runner := newFakeRunner()
	runner.paths[pacmanExecutable] = true

	p := NewPacman(runner)
	p.DBPath = db
	p.Root = root
	return p, root
}

func TestPacmanPackageList(t *testing.T) {
	p, root := newTestPacman(t)

	packages, err := p.PackageList(context.Background())
	require.NoError(t, err)
	require.Len(t, packages, 1)

	pkg := packages[0]
	assert.Equal(t, "nano", pkg.Name)
	assert.Equal(t, "8.0-1", pkg.Version)
	assert.Equal(t, "x86_64", pkg.Architecture)
	assert.Equal(t, "installed", pkg.Status)

	require.Len(t, pkg.Files, 1)
	assert.Equal(t, "/etc/nanorc", pkg.Files[0].Path())
	assert.True(t, pkg.Files[0].Mutable)
	assert.Equal(t, filepath.Join(root, "etc/nanorc"), pkg.Files[0].ReadPath())
}

func TestPacmanPackageListUnavailable(t *testing.T) {
	p, _ := newTestPacman(t)
	p.runner = newFakeRunner()

	_, err := p.PackageList(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrEnvironmentUnavailable))
}

func TestPacmanPackageListBrokenEntry(t *testing.T) {
	p, _ := newTestPacman(t)
	writeTestFile(t, filepath.Join(p.DBPath, "local/broken-1-1/desc"), "%NAME%\nbroken\n")

	_, err := p.PackageList(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrQuery))
}

func TestPacmanFilesForPackage(t *testing.T) {
	p, root := newTestPacman(t)

	packages, err := p.PackageList(context.Background())
	require.NoError(t, err)

	files, err := p.FilesForPackage(context.Background(), packages[0])
	require.NoError(t, err)

	// rnano is listed but missing on disk and nanorc is already known
	require.Len(t, files, 2)
	assert.Equal(t, "/usr/bin/nano", files[0].Path())
	assert.Equal(t, filepath.Join(root, "usr/bin/nano"), files[0].ReadPath())
	assert.Equal(t, "/usr/share/nano/c.nanorc", files[1].Path())
}

func TestParsePKGINFO(t *testing.T) {
	pkg, backup := parsePKGINFO([]byte("# Generated by makepkg\npkgname = nano\npkgver = 8.0-1\narch = x86_64\nbackup = etc/nanorc\nbackup = etc/nano.d/x\n"))
	assert.Equal(t, "nano", pkg.Name)
	assert.Equal(t, "8.0-1", pkg.Version)
	assert.Equal(t, "x86_64", pkg.Architecture)
	assert.Equal(t, []string{"etc/nanorc", "etc/nano.d/x"}, backup)
}

func buildPacmanPackage(t *testing.T, extra ...tarEntry) string {
	t.Helper()

	data := tarBytes(t, append([]tarEntry{
		{name: ".PKGINFO", body: "pkgname = hello\npkgver = 2.12-1\narch = x86_64\nbackup = etc/hello.conf\n", typeflag: tar.TypeReg},
		{name: ".MTREE", body: "#mtree", typeflag: tar.TypeReg},
		{name: "etc/", typeflag: tar.TypeDir},
		{name: "etc/hello.conf", body: "greeting=hi\n", typeflag: tar.TypeReg},
		{name: "usr/", typeflag: tar.TypeDir},
		{name: "usr/bin/", typeflag: tar.TypeDir},
		{name: "usr/bin/hello", body: "hello\n", typeflag: tar.TypeReg},
		{name: "usr/bin/hi", typeflag: tar.TypeSymlink, linkname: "hello"},
	}, extra...))

	name := "hello-2.12-1-x86_64.pkg.tar.zst"
	path := filepath.Join(t.TempDir(), name)
	writeTestFile(t, path, string(compressBytes(t, name, data)))
	return path
}

func TestPacmanPackageInfoFromFile(t *testing.T) {
	path := buildPacmanPackage(t)

	pkg, err := NewPacman(newFakeRunner()).PackageInfoFromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello", pkg.Name)
	assert.Equal(t, "2.12-1", pkg.Version)
}

func TestPacmanFilesFromPackageFile(t *testing.T) {
	path := buildPacmanPackage(t)

	files, err := NewPacman(newFakeRunner()).FilesFromPackageFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "/etc/hello.conf", files[0].Path())
	assert.True(t, files[0].Mutable)

	assert.Equal(t, "/usr/bin/hello", files[1].Path())
	assert.False(t, files[1].Mutable)
	assert.Equal(t, int64(6), files[1].Size)
	assert.Equal(t, helloSHA256, files[1].Digests["sha256"])
}

func TestPacmanHardLinks(t *testing.T) {
	path := buildPacmanPackage(t, tarEntry{name: "usr/bin/hello-again", typeflag: tar.TypeLink, linkname: "usr/bin/hello"})

	files, err := NewPacman(newFakeRunner()).FilesFromPackageFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "/usr/bin/hello-again", files[2].Path())
	assert.Equal(t, int64(6), files[2].Size)
	assert.Equal(t, helloSHA256, files[2].Digests["sha256"])
}

func TestPacmanRejectsOtherFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.rpm")
	writeTestFile(t, path, "\xed\xab\xee\xdb")

	_, err := NewPacman(newFakeRunner()).PackageInfoFromFile(context.Background(), path)
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrPackageParse))
}
