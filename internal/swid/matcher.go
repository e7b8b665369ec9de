package swid

import (
	"github.com/ralt/swidgen/internal/environment"
	"github.com/ralt/swidgen/internal/models"
	"github.com/ralt/swidgen/internal/utils"
)

// MatchContext is what a Matcher gets to decide on a package
type MatchContext struct {
	RegID       string
	Environment environment.Environment
	Package     *models.Package

	// OSString and Architecture are looked up once per run
	OSString     string
	Architecture string
}

// SoftwareID returns the tag identifier of the package in the context
func (c MatchContext) SoftwareID() string {
	return utils.SoftwareID(c.RegID, utils.UniqueID(c.Package, c.OSString, c.Architecture))
}

// Matcher selects the packages a tag is generated for. The implementations
// in this package are the complete set.
type Matcher interface {
	Match(c MatchContext) bool
	sealed()
}

// AllMatcher accepts every package
type AllMatcher struct{}

// Match always returns true
func (AllMatcher) Match(MatchContext) bool { return true }
func (AllMatcher) sealed()                 {}

// NameMatcher accepts packages with exactly the given name
type NameMatcher struct {
	Name string
}

// Match compares the package name
func (m NameMatcher) Match(c MatchContext) bool { return c.Package.Name == m.Name }
func (NameMatcher) sealed()                     {}

// SoftwareIDMatcher accepts the package whose computed tag identifier
// equals SoftwareID
type SoftwareIDMatcher struct {
	SoftwareID string
}

// Match compares the computed tag identifier
func (m SoftwareIDMatcher) Match(c MatchContext) bool { return c.SoftwareID() == m.SoftwareID }
func (SoftwareIDMatcher) sealed()                     {}

// NewMatcher builds the matcher for the given filters, at most one of
// which may be set
func NewMatcher(packageName, softwareID string) Matcher {
	switch {
	case softwareID != "":
		return SoftwareIDMatcher{SoftwareID: softwareID}
	case packageName != "":
		return NameMatcher{Name: packageName}
	default:
		return AllMatcher{}
	}
}
