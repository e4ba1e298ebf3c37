// Package commands loads user-defined script commands and runs them on
// behalf of the remember queue.
package commands

import (
	"fmt"
	"strings"
)

// Argument describes a single parameter accepted by a command.
type Argument struct {
	Name        string `toml:"name"`
	Type        string `toml:"type"`
	Description string `toml:"description"`
	Required    bool   `toml:"required"`
	Default     string `toml:"default"`
}

// Working directory modes.
const (
	WorkDirCommand = "command"
	WorkDirProject = "project"
)

// Command is a script described by a command.toml manifest.
type Command struct {
	Name        string
	Description string
	Runtime     string
	WorkingDir  string
	Timeout     int
	Arguments   []Argument
	Dir         string
	ScriptPath  string
}

func (c *Command) validate() error {
	if c.Name == "" {
		return fmt.Errorf("command name is required")
	}
	if c.Name != strings.ToLower(c.Name) || strings.ContainsAny(c.Name, " \t@") {
		return fmt.Errorf("command name %q must be lowercase without spaces or '@'", c.Name)
	}

	if c.Runtime != "bash" && c.Runtime != "python" {
		return fmt.Errorf("invalid runtime %q: must be \"bash\" or \"python\"", c.Runtime)
	}

	if c.WorkingDir != WorkDirCommand && c.WorkingDir != WorkDirProject {
		return fmt.Errorf("invalid working_dir %q: must be \"command\" or \"project\"", c.WorkingDir)
	}

	for _, arg := range c.Arguments {
		if arg.Name == "" {
			return fmt.Errorf("argument name is required")
		}
		if arg.Type != "string" {
			return fmt.Errorf("argument %q has invalid type %q: only \"string\" is supported", arg.Name, arg.Type)
		}
	}

	return nil
}

// Usage renders the command line form, e.g. "note <text>" or
// "grep <pattern> [path=.]".
func (c *Command) Usage() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	for _, arg := range c.Arguments {
		switch {
		case arg.Required:
			fmt.Fprintf(&sb, " <%s>", arg.Name)
		case arg.Default != "":
			fmt.Fprintf(&sb, " [%s=%s]", arg.Name, arg.Default)
		default:
			fmt.Fprintf(&sb, " [%s]", arg.Name)
		}
	}
	return sb.String()
}

// bind maps positional words onto the declared arguments in order. Words
// beyond the last argument are appended to it, so a trailing free-form
// argument can take the rest of the line.
func (c *Command) bind(words []string) (map[string]string, error) {
	resolved := make(map[string]string)

	for i, arg := range c.Arguments {
		switch {
		case i < len(words) && i == len(c.Arguments)-1:
			resolved[arg.Name] = strings.Join(words[i:], " ")
		case i < len(words):
			resolved[arg.Name] = words[i]
		case arg.Default != "":
			resolved[arg.Name] = arg.Default
		case arg.Required:
			return nil, fmt.Errorf("missing required argument: %s", arg.Name)
		}
	}

	return resolved, nil
}
