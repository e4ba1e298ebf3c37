package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const manifestFile = "command.toml"

const (
	defaultTimeout = 60
	maxTimeout     = 300
)

// scriptFor maps a manifest runtime to the script it runs.
var scriptFor = map[string]string{
	"bash":   "run.sh",
	"python": "run.py",
}

type manifest struct {
	Name        string     `toml:"name"`
	Description string     `toml:"description"`
	Runtime     string     `toml:"runtime"`
	WorkingDir  string     `toml:"working_dir"`
	Timeout     int        `toml:"timeout"`
	Arguments   []Argument `toml:"arguments"`
}

func readManifest(path string) (manifest, error) {
	var m manifest

	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read %s: %w", manifestFile, err)
	}
	if err := toml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse %s: %w", manifestFile, err)
	}

	if m.WorkingDir == "" {
		m.WorkingDir = WorkDirCommand
	}
	if m.Timeout <= 0 {
		m.Timeout = defaultTimeout
	}
	m.Timeout = min(m.Timeout, maxTimeout)

	return m, nil
}

func loadCommandDir(dir string) (*Command, error) {
	m, err := readManifest(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}

	script, ok := scriptFor[m.Runtime]
	if !ok {
		return nil, fmt.Errorf("invalid runtime %q: must be \"bash\" or \"python\"", m.Runtime)
	}

	cmd := &Command{
		Name:        m.Name,
		Description: m.Description,
		Runtime:     m.Runtime,
		WorkingDir:  m.WorkingDir,
		Timeout:     m.Timeout,
		Arguments:   m.Arguments,
		Dir:         dir,
		ScriptPath:  filepath.Join(dir, script),
	}

	if err := cmd.validate(); err != nil {
		return nil, fmt.Errorf("invalid command in %s: %w", dir, err)
	}
	if _, err := os.Stat(cmd.ScriptPath); err != nil {
		return nil, fmt.Errorf("script %s not found in %s", script, dir)
	}

	return cmd, nil
}
