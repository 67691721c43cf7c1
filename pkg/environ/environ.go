// Package environ answers questions about the host being specialized:
// which distribution it runs, how to install packages on it, and whether
// the tools the orchestrator shells out to are present. It also provides
// the restricted-environment subprocess runner every external command
// goes through.
package environ

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
)

// Distro identifies the host's Linux distribution.
type Distro struct {
	// ID is the lowercase distribution id from os-release, e.g. "debian".
	ID string

	// VersionID is the release version, e.g. "12".
	VersionID string
}

// Family groups distributions by their package manager.
type Family int

const (
	// FamilyUnknown means no supported package manager was identified.
	FamilyUnknown Family = iota

	// FamilyDebian covers apt-based distributions.
	FamilyDebian

	// FamilyRHEL covers yum-based distributions.
	FamilyRHEL
)

// Family returns the package-manager family of the distribution.
func (d *Distro) Family() Family {
	switch d.ID {
	case "debian", "ubuntu":
		return FamilyDebian
	case "centos", "redhat", "rhel":
		return FamilyRHEL
	}
	return FamilyUnknown
}

// osReleasePath is a variable so tests can point detection at a fixture.
var osReleasePath = "/etc/os-release"

var (
	detectOnce   sync.Once
	detectCached *Distro
	detectErr    error
)

// Detect identifies the host distribution from os-release. The result is
// computed once per process and cached. Non-Linux hosts are rejected:
// the whole system only specializes Linux instances.
func Detect() (*Distro, error) {
	detectOnce.Do(func() {
		if runtime.GOOS != "linux" {
			detectErr = &EnvironmentError{
				Op:     "detect",
				Reason: fmt.Sprintf("unsupported platform %s", runtime.GOOS),
			}
			return
		}
		detectCached, detectErr = detectFrom(osReleasePath)
	})
	return detectCached, detectErr
}

// detectFrom parses an os-release file.
func detectFrom(path string) (*Distro, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &EnvironmentError{Op: "detect", Reason: "cannot read os-release", Err: err}
	}
	d := &Distro{}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "ID":
			d.ID = strings.ToLower(value)
		case "VERSION_ID":
			d.VersionID = value
		}
	}
	if d.ID == "" {
		return nil, &EnvironmentError{Op: "detect", Reason: fmt.Sprintf("no ID field in %s", path)}
	}
	return d, nil
}
