package models

import "strings"

// Package represents a software unit reported by the host package manager
type Package struct {
	Name    string
	Version string

	// Status is the raw installation status reported by the manager
	Status string

	// Architecture as reported by the manager (informational only)
	Architecture string

	// Files starts with the configuration files found while listing and is
	// extended with the full manifest when a payload is requested
	Files []File
}

// File represents a filesystem path owned by a package
type File struct {
	// FullPath is the path as reported by the manager, possibly with a
	// trailing annotation such as a conffile hash
	FullPath  string
	Directory string
	Name      string
	Mutable   bool

	// Size and Digests are only populated for full inventories
	Size    int64
	Digests map[string]string

	// ContentPath is where the file content can be read, when it is not Path()
	ContentPath string
}

// NewFile creates a File from a manager-reported path
func NewFile(fullPath string) File {
	fullPath = strings.TrimSpace(fullPath)

	// Anything after the first whitespace is a manager annotation
	path := fullPath
	if i := strings.IndexAny(path, " \t"); i >= 0 {
		path = path[:i]
	}

	dir, name := "", path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		dir, name = path[:i], path[i+1:]
	}
	if dir == "" && strings.HasPrefix(path, "/") {
		dir = "/"
	}

	return File{
		FullPath:  fullPath,
		Directory: dir,
		Name:      name,
	}
}

// Path returns the file path without any manager annotation
func (f File) Path() string {
	switch f.Directory {
	case "":
		return f.Name
	case "/":
		return "/" + f.Name
	default:
		return f.Directory + "/" + f.Name
	}
}

// ReadPath returns the location the file content should be read from
func (f File) ReadPath() string {
	if f.ContentPath != "" {
		return f.ContentPath
	}
	return f.Path()
}

// HasPath reports whether the package already lists a file with the given
// path. path is an untruncated manifest path; listed files are compared by
// their annotation-free Path.
func (p *Package) HasPath(path string) bool {
	for _, f := range p.Files {
		if f.Path() == path {
			return true
		}
	}
	return false
}
