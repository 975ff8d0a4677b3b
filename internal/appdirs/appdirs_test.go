package appdirs

import (
	"path/filepath"
	"testing"
)

func TestBaseDirHonoursOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envHomeOverride, dir)

	got, err := BaseDir()
	if err != nil {
		t.Fatalf("BaseDir: %v", err)
	}
	if got != filepath.Clean(dir) {
		t.Fatalf("expected %s, got %s", dir, got)
	}
}

func TestArtifactsAndLogsDerivedFromBase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envHomeOverride, dir)
	t.Setenv(envArtifactsOverride, "")
	t.Setenv(envLogsOverride, "")

	artifacts, err := ArtifactsDir()
	if err != nil {
		t.Fatalf("ArtifactsDir: %v", err)
	}
	if artifacts != filepath.Join(dir, "artifacts") {
		t.Fatalf("unexpected artifacts dir %s", artifacts)
	}

	logs, err := LogsDir()
	if err != nil {
		t.Fatalf("LogsDir: %v", err)
	}
	if logs != filepath.Join(dir, "logs") {
		t.Fatalf("unexpected logs dir %s", logs)
	}
}

func TestArtifactsOverrideWins(t *testing.T) {
	t.Setenv(envHomeOverride, t.TempDir())
	override := t.TempDir()
	t.Setenv(envArtifactsOverride, override)

	got, err := ArtifactsDir()
	if err != nil {
		t.Fatalf("ArtifactsDir: %v", err)
	}
	if got != filepath.Clean(override) {
		t.Fatalf("expected override %s, got %s", override, got)
	}
}

func TestConfigCandidatesOrder(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envHomeOverride, dir)

	paths := ConfigCandidates()
	if len(paths) != 2 {
		t.Fatalf("expected 2 candidates, got %v", paths)
	}
	if paths[0] != ConfigFileName {
		t.Fatalf("working directory file should be first, got %s", paths[0])
	}
	if paths[1] != filepath.Join(dir, ConfigFileName) {
		t.Fatalf("unexpected second candidate %s", paths[1])
	}
}

func TestEnsureDirRejectsEmpty(t *testing.T) {
	if err := EnsureDir("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
	target := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(target); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
}
