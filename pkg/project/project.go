// Package project locates the project root and reads the project manifest.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

const (
	// MarkerFile identifies a directory as a project root.
	MarkerFile = "bale.yaml"

	// DepsDir is the dependency directory under the project root.
	DepsDir = "components"
)

// FindRoot resolves the project root directory.
//
// An explicit root is resolved against the working directory and returned
// immediately, without checking that it exists. Otherwise the working
// directory and its ancestors are checked, nearest first, for [MarkerFile];
// the first directory containing it wins. If no ancestor down to the
// filesystem root contains the marker, the working directory is returned
// unchanged. That fallback is silent: a missing marker is not an error.
func FindRoot(explicit string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", fmt.Errorf("resolve root %q: %w", explicit, err)
		}

		return abs, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	return findRootFrom(wd), nil
}

func findRootFrom(wd string) string {
	dir := wd
	for {
		info, err := os.Stat(filepath.Join(dir, MarkerFile))
		if err == nil && info.Mode().IsRegular() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the filesystem root without finding a marker.
			return wd
		}

		dir = parent
	}
}

// Manifest is the parsed contents of a [MarkerFile].
type Manifest struct {
	// Name is the project or component name.
	Name string `yaml:"name"`
	// Main is the primary entry file, used when a component is consumed as a
	// dependency or plugin.
	Main string `yaml:"main,omitempty"`
	// Dependencies maps dependency names to version constraints.
	Dependencies map[string]string `yaml:"dependencies,omitempty"`
}

// LoadManifest reads and parses the manifest in dir. It returns
// [os.ErrNotExist] (wrapped) when the directory has no manifest.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, MarkerFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m := &Manifest{}

	err = yaml.Unmarshal(data, m)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %q: %w", path, err)
	}

	return m, nil
}
