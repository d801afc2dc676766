package checksum

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SidecarSuffix is appended to an artifact name to form its checksum
// sidecar name.
const SidecarSuffix = ".sha256"

// WriteSidecar writes the checksum sidecar for artifactPath next to
// it, in the conventional "<hex>  <filename>" single-line format.
func WriteSidecar(artifactPath, digest string) (string, error) {
	sidecarPath := artifactPath + SidecarSuffix
	line := fmt.Sprintf("%s  %s\n", digest, filepath.Base(artifactPath))
	if err := os.WriteFile(sidecarPath, []byte(line), 0o644); err != nil {
		return "", fmt.Errorf("failed to write checksum sidecar %s: %w", sidecarPath, err)
	}
	return sidecarPath, nil
}

// ReadSidecar parses a checksum sidecar file and returns the hex
// digest it records.
func ReadSidecar(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read checksum sidecar %s: %w", path, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) < 1 || fields[0] == "" {
		return "", fmt.Errorf("malformed checksum sidecar %s", path)
	}
	return fields[0], nil
}

// SidecarFor returns the conventional sidecar path for an artifact
func SidecarFor(artifactPath string) string {
	return artifactPath + SidecarSuffix
}
