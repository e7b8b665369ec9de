package environment

import (
	"bufio"
	"os"
	"runtime"
	"strings"
)

const unknownLabel = "unknown"

// Host detects the OS and architecture labels used in unique ids
type Host struct {
	// OSReleasePaths are tried in order for an os-release file
	OSReleasePaths []string

	// Machine returns the hardware name, empty when unknown
	Machine func() string
}

// DefaultHost returns a Host reading the standard os-release locations
func DefaultHost() Host {
	return Host{
		OSReleasePaths: []string{"/etc/os-release", "/usr/lib/os-release"},
		Machine:        unameMachine,
	}
}

// OSString returns "<ID>_<VERSION_ID>" from os-release, or "unknown"
func (h Host) OSString() string {
	for _, path := range h.OSReleasePaths {
		fields, err := readOSRelease(path)
		if err != nil {
			continue
		}

		id := fields["ID"]
		if id == "" {
			continue
		}
		label := id
		if v := fields["VERSION_ID"]; v != "" {
			label += "_" + v
		}
		return strings.Join(strings.Fields(label), "_")
	}

	return unknownLabel
}

// Architecture returns the machine hardware name, e.g. "x86_64"
func (h Host) Architecture() string {
	if h.Machine != nil {
		if m := strings.TrimSpace(h.Machine()); m != "" {
			return m
		}
	}
	if runtime.GOARCH != "" {
		return runtime.GOARCH
	}
	return unknownLabel
}

// readOSRelease parses KEY=value lines, removing optional quotes
func readOSRelease(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fields := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}

	return fields, scanner.Err()
}
