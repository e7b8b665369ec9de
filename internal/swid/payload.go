package swid

import (
	"encoding/xml"
	"strings"

	"github.com/ralt/swidgen/internal/models"
	"github.com/ralt/swidgen/internal/utils"
)

// splitDirectory splits the directory of a file into its parent path and its
// own name, e.g. "/usr/share/doc/cowsay" into "/usr/share/doc" and "cowsay"
func splitDirectory(dir string) (root, name string) {
	i := strings.LastIndex(dir, "/")
	switch {
	case i < 0:
		return "", dir
	case i == 0:
		return "/", dir[1:]
	default:
		return dir[:i], dir[i+1:]
	}
}

// createPayload groups files into Directory elements in a single pass.
// Only adjacent files share an element: a directory interrupted by another
// one is emitted again, so the element order follows the manifest order.
func createPayload(files []models.File, algs []utils.Algorithm) *Payload {
	payload := &Payload{
		Attrs: []xml.Attr{
			attr("n8060:pathSeparator", "/"),
			attr("n8060:envVarPrefix", "$"),
			attr("n8060:envVarSuffix", ""),
		},
	}

	var current *Directory
	var lastRoot, lastName string

	for _, f := range files {
		root, name := splitDirectory(f.Directory)
		if current == nil || root != lastRoot || name != lastName {
			payload.Directories = append(payload.Directories, Directory{Root: root, Name: name})
			current = &payload.Directories[len(payload.Directories)-1]
			lastRoot, lastName = root, name
		}

		current.Files = append(current.Files, fileElement(f, algs))
	}

	return payload
}

// fileElement renders a measured file with one hash attribute per algorithm
func fileElement(f models.File, algs []utils.Algorithm) File {
	elem := File{
		Name:    f.Name,
		Mutable: f.Mutable,
		Size:    f.Size,
	}
	for _, alg := range algs {
		if digest, ok := f.Digests[string(alg)]; ok {
			elem.Hashes = append(elem.Hashes, attr(alg.Tag()+":hash", digest))
		}
	}
	return elem
}
