package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/ralt/swidgen/internal/models"
	"github.com/ralt/swidgen/internal/signer"
	"github.com/ralt/swidgen/internal/swid"
	"github.com/ralt/swidgen/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	tagExtension = ".swidtag"

	// publicKeyFile holds the key that verifies the .asc signatures
	publicKeyFile = "swidgen.pub.asc"
)

// NewSwidCmd creates the swid command
func NewSwidCmd() *cobra.Command {
	var config models.TagConfig

	cmd := &cobra.Command{
		Use:   "swid",
		Short: "Generate SWID tags",
		Long: `Queries the package manager and generates one SWID tag per installed
package. Tags are written to stdout, separated by --doc-separator, or to
one <software-id>.swidtag file per package with --output-dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateTagConfig(&config); err != nil {
				return err
			}
			logrus.Debugf("Configuration: %+v", config)

			return runSwid(cmd, &config)
		},
	}

	// Tag identity flags
	cmd.Flags().StringVar(&config.EntityName, "entity-name", models.DefaultEntityName, "Name of the tag creator entity")
	cmd.Flags().StringVar(&config.RegID, "regid", models.DefaultRegID, "Registration id of the tag creator entity")

	// Inventory flags
	cmd.Flags().BoolVar(&config.Full, "full", false, "Include the payload listing every file of the package")
	cmd.Flags().StringVar(&config.Hash, "hash", models.DefaultHash, "Comma-separated file digests for --full (sha256, sha384, sha512)")
	cmd.Flags().StringVar(&config.Environment, "env", "", "Package manager to query (dpkg, rpm, pacman); autodetected when empty")

	// Filter flags
	cmd.Flags().StringVar(&config.PackageName, "package", "", "Only generate the tag of this package")
	cmd.Flags().StringVar(&config.SoftwareID, "software-id", "", "Only generate the tag with this software id")
	cmd.Flags().StringVar(&config.PackageFile, "package-file", "", "Generate the tag of a package archive instead of installed packages")
	cmd.MarkFlagsMutuallyExclusive("package", "software-id")

	// Output flags
	cmd.Flags().StringVar(&config.DocSeparator, "doc-separator", models.DefaultDocSeparator, "Separator between tags written to stdout")
	cmd.Flags().StringVarP(&config.OutputDir, "output-dir", "o", "", "Write each tag to <software-id>.swidtag in this directory")

	// GPG signing flags
	cmd.Flags().StringVarP(&config.GPGKeyPath, "gpg-key", "k", "", "Path to GPG private key used to sign each tag file")
	cmd.Flags().StringVarP(&config.GPGPassphrase, "gpg-passphrase", "p", "", "GPG key passphrase")

	return cmd
}

func validateTagConfig(config *models.TagConfig) error {
	if config.PackageName != "" && config.SoftwareID != "" {
		return &models.SwidError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("--package and --software-id are mutually exclusive"),
		}
	}

	if config.GPGKeyPath != "" && config.OutputDir == "" {
		return &models.SwidError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("--gpg-key requires --output-dir"),
		}
	}

	if config.RegID == "" {
		return &models.SwidError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("regid is required"),
		}
	}

	config.DocSeparator = unescapeSeparator(config.DocSeparator)
	return nil
}

func runSwid(cmd *cobra.Command, config *models.TagConfig) error {
	algs := utils.ParseAlgorithms(config.Hash)
	if config.Full && config.Hash != "" && len(algs) == 0 {
		logrus.Warnf("No supported digest in %q, payload files will not be hashed", config.Hash)
	}

	env, err := newEnvironment(config.Environment)
	if err != nil {
		return err
	}
	logrus.Debugf("Using %s environment", env.Name())

	var gpgSigner signer.Signer
	if config.GPGKeyPath != "" {
		gpgSigner, err = signer.NewGPGSigner(config.GPGKeyPath, config.GPGPassphrase)
		if err != nil {
			return err
		}
		logrus.Info("GPG signer initialized")
	}

	opts := swid.Options{
		EntityName:  config.EntityName,
		RegID:       config.RegID,
		Algorithms:  algs,
		Full:        config.Full,
		Matcher:     swid.NewMatcher(config.PackageName, config.SoftwareID),
		PackageFile: config.PackageFile,
	}

	var out tagWriter
	if config.OutputDir != "" {
		if err := utils.EnsureDir(config.OutputDir); err != nil {
			return &models.SwidError{
				Type: models.ErrFileOp,
				Err:  fmt.Errorf("failed to create output directory: %w", err),
			}
		}
		if gpgSigner != nil {
			if err := writePublicKey(config.OutputDir, gpgSigner); err != nil {
				return err
			}
		}
		out = &dirWriter{dir: config.OutputDir, signer: gpgSigner}
	} else {
		out = &streamWriter{w: cmd.OutOrStdout(), separator: config.DocSeparator}
	}

	count := 0
	for doc, err := range swid.CreateSwidTags(cmd.Context(), env, opts) {
		if err != nil {
			return err
		}
		if err := out.write(doc); err != nil {
			return err
		}
		count++
	}
	if err := out.close(); err != nil {
		return err
	}

	if count == 0 {
		logrus.Warn("No matching packages found")
	} else {
		logrus.Debugf("Generated %d tags", count)
	}
	return nil
}

// tagWriter receives the generated tags in order
type tagWriter interface {
	write(doc []byte) error
	close() error
}

// streamWriter writes tags to a stream, separated by separator
type streamWriter struct {
	w         io.Writer
	separator string
	count     int
}

func (s *streamWriter) write(doc []byte) error {
	if s.count > 0 {
		if _, err := io.WriteString(s.w, s.separator); err != nil {
			return err
		}
	}
	s.count++
	_, err := s.w.Write(doc)
	return err
}

func (s *streamWriter) close() error {
	if s.count == 0 {
		return nil
	}
	_, err := io.WriteString(s.w, "\n")
	return err
}

// dirWriter writes every tag to its own file, with an optional detached
// signature next to it
type dirWriter struct {
	dir    string
	signer signer.Signer
}

func (d *dirWriter) write(doc []byte) error {
	identity, err := swid.ParseIdentity(doc)
	if err != nil {
		return err
	}

	path := filepath.Join(d.dir, utils.SafeFileName(identity.SoftwareID())+tagExtension)
	if err := utils.WriteFile(path, doc, 0644); err != nil {
		return &models.SwidError{
			Type:    models.ErrFileOp,
			Package: identity.Name,
			Err:     fmt.Errorf("failed to write tag: %w", err),
		}
	}
	logrus.Infof("Wrote %s", path)

	if d.signer == nil {
		return nil
	}

	sig, err := d.signer.SignDetached(doc)
	if err != nil {
		return err
	}
	if err := utils.WriteFile(path+".asc", sig, 0644); err != nil {
		return &models.SwidError{
			Type:    models.ErrFileOp,
			Package: identity.Name,
			Err:     fmt.Errorf("failed to write signature: %w", err),
		}
	}
	logrus.Debugf("Signed %s", path)
	return nil
}

func (d *dirWriter) close() error {
	return nil
}

// writePublicKey exports the signing key next to the tags
func writePublicKey(dir string, s signer.Signer) error {
	pub, err := s.GetPublicKey()
	if err != nil {
		return &models.SwidError{
			Type: models.ErrSigning,
			Err:  fmt.Errorf("failed to export public key: %w", err),
		}
	}

	path := filepath.Join(dir, publicKeyFile)
	if err := utils.WriteFile(path, pub, 0644); err != nil {
		return &models.SwidError{
			Type: models.ErrFileOp,
			Err:  fmt.Errorf("failed to write public key: %w", err),
		}
	}
	logrus.Infof("Wrote public key to %s", path)
	return nil
}
