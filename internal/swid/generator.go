// Package swid assembles SWID tags from the packages of an environment.
package swid

import (
	"context"
	"encoding/xml"
	"fmt"
	"iter"

	"github.com/ralt/swidgen/internal/environment"
	"github.com/ralt/swidgen/internal/models"
	"github.com/ralt/swidgen/internal/utils"
	"github.com/sirupsen/logrus"
)

// Options controls which tags are generated and what they contain
type Options struct {
	EntityName string
	RegID      string

	// Algorithms are the digests added to every payload file
	Algorithms []utils.Algorithm

	// Full adds the payload section listing every file
	Full bool

	// Matcher selects packages; nil accepts all of them
	Matcher Matcher

	// PackageFile, when set, generates a single tag for a package archive
	// instead of querying the installed packages
	PackageFile string
}

// Generator builds tags for the packages of one environment
type Generator struct {
	env  environment.Environment
	opts Options
}

// NewGenerator creates a new tag generator
func NewGenerator(env environment.Environment, opts Options) *Generator {
	if opts.Matcher == nil {
		opts.Matcher = AllMatcher{}
	}
	return &Generator{env: env, opts: opts}
}

// CreateSwidTags returns the tags of every matching package, see Generator.Tags
func CreateSwidTags(ctx context.Context, env environment.Environment, opts Options) iter.Seq2[[]byte, error] {
	return NewGenerator(env, opts).Tags(ctx)
}

// CreateSoftwareIDs returns the tag identifiers of every matching package
func CreateSoftwareIDs(ctx context.Context, env environment.Environment, regid string, matcher Matcher) iter.Seq2[string, error] {
	return NewGenerator(env, Options{RegID: regid, Matcher: matcher}).SoftwareIDs(ctx)
}

// Tags returns one serialized tag per matching package, in the order the
// environment lists them. The package list is queried once when iteration
// starts; files and hashes of a package are only fetched when its tag is
// reached. The first error ends the sequence.
func (g *Generator) Tags(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		osString := g.env.OSString()
		architecture := g.env.Architecture()

		if g.opts.PackageFile != "" {
			yield(g.packageFileTag(ctx, osString, architecture))
			return
		}

		packages, err := g.env.PackageList(ctx)
		if err != nil {
			yield(nil, err)
			return
		}

		for _, pkg := range g.matching(packages, osString, architecture) {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			tag, err := g.buildTag(pkg, osString, architecture, func() ([]models.File, error) {
				return g.env.FilesForPackage(ctx, pkg)
			})
			if !yield(tag, err) || err != nil {
				return
			}
		}
	}
}

// SoftwareIDs returns the tag identifier of every matching package
func (g *Generator) SoftwareIDs(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		osString := g.env.OSString()
		architecture := g.env.Architecture()

		if g.opts.PackageFile != "" {
			pkg, err := g.packageFromFile(ctx)
			if err != nil {
				yield("", err)
				return
			}
			yield(utils.SoftwareID(g.opts.RegID, utils.UniqueID(pkg, osString, architecture)), nil)
			return
		}

		packages, err := g.env.PackageList(ctx)
		if err != nil {
			yield("", err)
			return
		}

		for _, pkg := range g.matching(packages, osString, architecture) {
			if !yield(utils.SoftwareID(g.opts.RegID, utils.UniqueID(pkg, osString, architecture)), nil) {
				return
			}
		}
	}
}

// matching lazily filters packages through the configured matcher
func (g *Generator) matching(packages []*models.Package, osString, architecture string) iter.Seq2[int, *models.Package] {
	return func(yield func(int, *models.Package) bool) {
		for i, pkg := range packages {
			ctx := MatchContext{
				RegID:        g.opts.RegID,
				Environment:  g.env,
				Package:      pkg,
				OSString:     osString,
				Architecture: architecture,
			}
			if !g.opts.Matcher.Match(ctx) {
				continue
			}
			if !yield(i, pkg) {
				return
			}
		}
	}
}

// packageFileTag builds the tag of the package archive in opts.PackageFile
func (g *Generator) packageFileTag(ctx context.Context, osString, architecture string) ([]byte, error) {
	pkg, err := g.packageFromFile(ctx)
	if err != nil {
		return nil, err
	}

	resolver := g.env.(environment.ArchiveResolver)
	return g.buildTag(pkg, osString, architecture, func() ([]models.File, error) {
		files, err := resolver.FilesFromPackageFile(ctx, g.opts.PackageFile)
		if err != nil {
			return nil, err
		}

		var fresh []models.File
		for _, f := range files {
			if !pkg.HasPath(f.FullPath) {
				fresh = append(fresh, f)
			}
		}
		return fresh, nil
	})
}

func (g *Generator) packageFromFile(ctx context.Context) (*models.Package, error) {
	resolver, ok := g.env.(environment.ArchiveResolver)
	if !ok {
		return nil, &models.SwidError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("%s environment cannot read package files", g.env.Name()),
		}
	}

	logrus.Debugf("Reading package file %s", g.opts.PackageFile)
	return resolver.PackageInfoFromFile(ctx, g.opts.PackageFile)
}

// buildTag assembles and serializes the tag of pkg. fetchFiles is only
// called for full tags.
func (g *Generator) buildTag(pkg *models.Package, osString, architecture string, fetchFiles func() ([]models.File, error)) ([]byte, error) {
	logrus.Debugf("Generating tag for %s %s", pkg.Name, pkg.Version)

	identity := &SoftwareIdentity{
		XMLNS:         XMLNS,
		Namespaces:    []xml.Attr{attr("xmlns:n8060", N8060)},
		Name:          pkg.Name,
		UniqueID:      utils.UniqueID(pkg, osString, architecture),
		Version:       pkg.Version,
		VersionScheme: VersionScheme,
		Entity: Entity{
			Name:  g.opts.EntityName,
			RegID: g.opts.RegID,
			Role:  Role,
		},
	}

	if g.opts.Full {
		files, err := fetchFiles()
		if err != nil {
			return nil, err
		}
		pkg.Files = append(pkg.Files, files...)

		if err := measureFiles(pkg, g.opts.Algorithms); err != nil {
			return nil, err
		}

		for _, alg := range g.opts.Algorithms {
			identity.Namespaces = append(identity.Namespaces, attr("xmlns:"+alg.Tag(), alg.Namespace()))
		}
		identity.Payload = createPayload(pkg.Files, g.opts.Algorithms)
	}

	tag, err := identity.Marshal()
	if err != nil {
		return nil, &models.SwidError{
			Type:    models.ErrFileOp,
			Package: pkg.Name,
			Err:     fmt.Errorf("failed to serialize tag: %w", err),
		}
	}
	return tag, nil
}

// measureFiles sets the size and the missing digests of every file of pkg
func measureFiles(pkg *models.Package, algs []utils.Algorithm) error {
	for i := range pkg.Files {
		f := &pkg.Files[i]

		var missing []utils.Algorithm
		for _, alg := range algs {
			if _, ok := f.Digests[string(alg)]; !ok {
				missing = append(missing, alg)
			}
		}

		// Archive readers measure while streaming
		if f.Digests != nil && len(missing) == 0 {
			continue
		}

		sum, err := utils.Checksums(f.ReadPath(), missing)
		if err != nil {
			return &models.SwidError{
				Type:    models.ErrHashing,
				Package: pkg.Name,
				Err:     fmt.Errorf("failed to hash %s: %w", f.Path(), err),
			}
		}

		if f.Digests == nil {
			f.Digests = make(map[string]string, len(sum.Digests))
		}
		for alg, digest := range sum.Digests {
			f.Digests[string(alg)] = digest
		}
		f.Size = sum.Size
	}
	return nil
}
