package cmd

import (
	"os"
	"path/filepath"

	"github.com/searchgrep/searchgrep/internal/config"
	"github.com/searchgrep/searchgrep/internal/runtime"
)

const defaultStoreName = "index"

// openRuntime resolves the project root, loads layered config, and
// constructs a Runtime bound to {root}/.searchgrep as the data directory.
func openRuntime() (*runtime.Runtime, string, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, err = os.Getwd()
		if err != nil {
			return nil, "", err
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, "", err
	}

	dataDir := filepath.Join(root, ".searchgrep")
	rt, err := runtime.New(cfg, dataDir, defaultStoreName)
	if err != nil {
		return nil, "", err
	}
	return rt, root, nil
}
