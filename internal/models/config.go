package models

// Defaults used when neither flags nor the config file provide a value
const (
	DefaultEntityName   = "strongSwan Project"
	DefaultRegID        = "regid.2004-03.org.strongswan"
	DefaultHash         = "sha256"
	DefaultDocSeparator = "\n"
)

// TagConfig contains the caller-supplied parameters for tag generation
type TagConfig struct {
	// Tag identity
	EntityName string
	RegID      string

	// Inventory
	Full        bool
	Hash        string // comma-separated list of sha256, sha384, sha512
	Environment string // dpkg, rpm, pacman; empty means autodetect

	// Filters (at most one of PackageName / SoftwareID)
	PackageName string
	SoftwareID  string
	PackageFile string

	// Output
	DocSeparator string
	OutputDir    string

	// Signing
	GPGKeyPath    string
	GPGPassphrase string
}
