package test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestIntegration runs swidgen inside Docker containers of every supported
// package manager
func TestIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	// Check if Docker is available
	if !isDockerAvailable() {
		t.Skip("Docker not available, skipping integration tests")
	}

	// Get project root
	projectRoot, err := getProjectRoot()
	if err != nil {
		t.Fatalf("Failed to find project root: %v", err)
	}

	// Build a static linux binary that runs in every container
	t.Log("Building swidgen binary...")
	binDir := t.TempDir()
	if err := buildSwidgen(projectRoot, binDir); err != nil {
		t.Fatalf("Failed to build swidgen: %v", err)
	}

	tests := []struct {
		name    string
		image   string
		env     string
		pkg     string
		osLabel string
		file    string
	}{
		{"Debian", "debian:bookworm", "dpkg", "bash", "debian_12", `name="bash"`},
		{"Fedora", "fedora:40", "rpm", "bash", "fedora_40", `name="bash"`},
		{"Arch", "archlinux:latest", "pacman", "pacman", "arch", `name="pacman.conf" mutable="true"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			output := runInContainer(t, binDir, tc.image,
				fmt.Sprintf("/swidgen/swidgen swid --env %s --package %s --full --hash sha256,sha512", tc.env, tc.pkg))

			if !strings.HasPrefix(output, `<?xml version="1.0" encoding="utf-8"?><SoftwareIdentity`) {
				t.Fatalf("Unexpected output: %s", output)
			}
			for _, required := range []string{
				fmt.Sprintf(`name="%s"`, tc.pkg),
				fmt.Sprintf(`uniqueId="%s-`, tc.osLabel),
				`<Entity name="strongSwan Project" regid="regid.2004-03.org.strongswan" role="tagCreator">`,
				`xmlns:SHA256="http://www.w3.org/2001/04/xmlenc#sha256"`,
				`xmlns:SHA512="http://www.w3.org/2001/04/xmlenc#sha512"`,
				tc.file,
			} {
				if !strings.Contains(output, required) {
					t.Errorf("Tag missing required content: %s", required)
				}
			}

			ids := runInContainer(t, binDir, tc.image,
				fmt.Sprintf("/swidgen/swidgen software-id --env %s", tc.env))
			lines := strings.Split(strings.TrimSpace(ids), "\n")
			if len(lines) < 10 {
				t.Errorf("Expected the base image to list many packages, got %d", len(lines))
			}
			for _, line := range lines {
				if !strings.HasPrefix(line, "regid.2004-03.org.strongswan__"+tc.osLabel) {
					t.Errorf("Unexpected software id: %s", line)
				}
			}
		})
	}
}

func runInContainer(t *testing.T, binDir, image, script string) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "run", "--rm",
		"-v", fmt.Sprintf("%s:/swidgen:ro", binDir),
		image,
		"sh", "-c", script,
	)
	cmd.Stderr = os.Stderr

	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("Failed to run swidgen in %s: %v", image, err)
	}
	return string(output)
}

// Helper functions

func isDockerAvailable() bool {
	cmd := exec.Command("docker", "version")
	return cmd.Run() == nil
}

func getProjectRoot() (string, error) {
	// Try to find go.mod
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find project root (go.mod)")
}

func buildSwidgen(projectRoot, outDir string) error {
	cmd := exec.Command("go", "build", "-o", filepath.Join(outDir, "swidgen"), "./cmd/swidgen")
	cmd.Dir = projectRoot
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0", "GOOS=linux")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
