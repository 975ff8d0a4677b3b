package appdirs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envHomeOverride      = "CADPROBE_HOME"
	envArtifactsOverride = "CADPROBE_ARTIFACT_DIR"
	envLogsOverride      = "CADPROBE_LOG_DIR"
)

// ConfigFileName is the name looked up in the working directory and BaseDir.
const ConfigFileName = "cadprobe.toml"

func BaseDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(envHomeOverride)); dir != "" {
		return filepath.Clean(dir), nil
	}

	if cfgDir, err := os.UserConfigDir(); err == nil && strings.TrimSpace(cfgDir) != "" {
		return filepath.Join(cfgDir, "cadprobe"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		if err == nil {
			err = errors.New("empty home directory")
		}
		return "", fmt.Errorf("determine cadprobe base dir: %w", err)
	}

	return filepath.Join(home, ".cadprobe"), nil
}

func ArtifactsDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(envArtifactsOverride)); dir != "" {
		return filepath.Clean(dir), nil
	}

	base, err := BaseDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(base, "artifacts"), nil
}

func LogsDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(envLogsOverride)); dir != "" {
		return filepath.Clean(dir), nil
	}

	base, err := BaseDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(base, "logs"), nil
}

// ConfigCandidates lists config file locations in lookup order.
func ConfigCandidates() []string {
	paths := []string{ConfigFileName}
	if base, err := BaseDir(); err == nil {
		paths = append(paths, filepath.Join(base, ConfigFileName))
	}
	return paths
}

func EnsureDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("ensure dir: empty path")
	}
	return os.MkdirAll(path, 0o755)
}
