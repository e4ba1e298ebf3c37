package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadValidBashCommand(t *testing.T) {
	dir := t.TempDir()
	cmdDir := filepath.Join(dir, "echo-test")

	writeFile(t, filepath.Join(cmdDir, "command.toml"), `
name = "echo-test"
description = "Echoes a message"
runtime = "bash"

[[arguments]]
name = "message"
type = "string"
description = "Message to echo"
required = true
`)
	writeFile(t, filepath.Join(cmdDir, "run.sh"), `echo "$RECALL_ARG_MESSAGE"`)

	cmd, err := loadCommandDir(cmdDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cmd.Name != "echo-test" {
		t.Errorf("name = %q, want %q", cmd.Name, "echo-test")
	}
	if cmd.WorkingDir != WorkDirCommand {
		t.Errorf("working_dir = %q, want %q", cmd.WorkingDir, WorkDirCommand)
	}
	if cmd.Timeout != 60 {
		t.Errorf("timeout = %d, want %d", cmd.Timeout, 60)
	}
	if len(cmd.Arguments) != 1 || !cmd.Arguments[0].Required {
		t.Fatalf("unexpected arguments: %+v", cmd.Arguments)
	}
}

func TestLoadMissingScriptFile(t *testing.T) {
	dir := t.TempDir()
	cmdDir := filepath.Join(dir, "bad")

	writeFile(t, filepath.Join(cmdDir, "command.toml"), `
name = "bad"
runtime = "bash"
`)

	_, err := loadCommandDir(cmdDir)
	if err == nil {
		t.Fatal("expected error for missing run.sh")
	}
	if !strings.Contains(err.Error(), "run.sh not found") {
		t.Errorf("error = %q, want mention of run.sh", err.Error())
	}
}

func TestLoadInvalidManifests(t *testing.T) {
	cases := map[string]string{
		"runtime":     "name = \"x\"\nruntime = \"ruby\"\n",
		"working-dir": "name = \"x\"\nruntime = \"bash\"\nworking_dir = \"agent\"\n",
		"name-case":   "name = \"Deploy\"\nruntime = \"bash\"\n",
		"name-at":     "name = \"@x\"\nruntime = \"bash\"\n",
		"arg-type":    "name = \"x\"\nruntime = \"bash\"\n[[arguments]]\nname = \"n\"\ntype = \"int\"\n",
	}

	for name, manifest := range cases {
		t.Run(name, func(t *testing.T) {
			cmdDir := filepath.Join(t.TempDir(), "cmd")
			writeFile(t, filepath.Join(cmdDir, "command.toml"), manifest)
			writeFile(t, filepath.Join(cmdDir, "run.sh"), "echo hi")

			if _, err := loadCommandDir(cmdDir); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadTimeoutClamped(t *testing.T) {
	dir := t.TempDir()
	cmdDir := filepath.Join(dir, "clamped")

	writeFile(t, filepath.Join(cmdDir, "command.toml"), `
name = "clamped"
runtime = "bash"
timeout = 999
`)
	writeFile(t, filepath.Join(cmdDir, "run.sh"), "echo hi")

	cmd, err := loadCommandDir(cmdDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Timeout != 300 {
		t.Errorf("clamped timeout = %d, want 300", cmd.Timeout)
	}
}

func TestRegistryLoadEmpty(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "nonexistent"))

	if err := reg.Load(); err != nil {
		t.Fatalf("unexpected error for nonexistent dir: %v", err)
	}
	if len(reg.Skipped()) != 0 {
		t.Error("expected nothing skipped for nonexistent dir")
	}
	if len(reg.Names()) != 0 {
		t.Error("expected no names")
	}
}

func TestRegistryLoadAndLookup(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "hello", "command.toml"), `
name = "hello"
description = "Says hello"
runtime = "bash"

[[arguments]]
name = "who"
type = "string"
required = true

[[arguments]]
name = "style"
type = "string"
default = "casual"
`)
	writeFile(t, filepath.Join(dir, "hello", "run.sh"), `echo "Hello $RECALL_ARG_WHO"`)

	writeFile(t, filepath.Join(dir, "broken", "command.toml"), "name = \"broken\"\nruntime = \"bash\"\n")

	reg := NewRegistry(dir)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !reg.Has("hello") {
		t.Fatal("expected hello to be loaded")
	}
	if reg.Has("broken") {
		t.Error("broken command should be skipped")
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "hello" {
		t.Errorf("Names() = %v", names)
	}

	if !reg.Has("HELLO") {
		t.Error("lookup should ignore case")
	}

	hello, _ := reg.Get("hello")
	if got, want := hello.Usage(), "hello <who> [style=casual]"; got != want {
		t.Errorf("Usage() = %q, want %q", got, want)
	}

	skipped := reg.Skipped()
	if len(skipped) != 1 || skipped[0].Dir != "broken" {
		t.Errorf("Skipped() = %+v", skipped)
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"a", "b"} {
		writeFile(t, filepath.Join(dir, sub, "command.toml"), "name = \"same\"\nruntime = \"bash\"\n")
		writeFile(t, filepath.Join(dir, sub, "run.sh"), "echo hi")
	}

	reg := NewRegistry(dir)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if names := reg.Names(); len(names) != 1 {
		t.Errorf("Names() = %v, want one command", names)
	}
	if len(reg.Skipped()) != 1 {
		t.Errorf("Skipped() = %+v, want the duplicate", reg.Skipped())
	}
}

func TestBind(t *testing.T) {
	cmd := &Command{Arguments: []Argument{
		{Name: "target", Required: true},
		{Name: "message", Default: "none"},
	}}

	got, err := cmd.bind([]string{"prod", "ship", "it", "now"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["target"] != "prod" || got["message"] != "ship it now" {
		t.Errorf("unexpected binding: %v", got)
	}

	got, err = cmd.bind([]string{"prod"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["message"] != "none" {
		t.Errorf("expected default, got %v", got)
	}

	if _, err := cmd.bind(nil); err == nil {
		t.Error("expected missing required argument error")
	}
}
