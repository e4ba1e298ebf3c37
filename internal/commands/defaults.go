package commands

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed content
var bundled embed.FS

// EnsureDefaults installs the bundled commands under dir. A command whose
// directory already exists is left as the user edited it.
func EnsureDefaults(dir string) error {
	content, err := fs.Sub(bundled, "content")
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(content, ".")
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		target := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(target); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("install command %s: %w", entry.Name(), err)
		}

		src, err := fs.Sub(content, entry.Name())
		if err != nil {
			return err
		}
		if err := os.CopyFS(target, src); err != nil {
			return fmt.Errorf("install command %s: %w", entry.Name(), err)
		}
		if err := markScriptsExecutable(target); err != nil {
			return fmt.Errorf("install command %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// embedded files carry no exec bit, so scripts are chmodded after the copy.
func markScriptsExecutable(dir string) error {
	for _, script := range scriptFor {
		path := filepath.Join(dir, script)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.Chmod(path, 0o755); err != nil {
			return err
		}
	}
	return nil
}
