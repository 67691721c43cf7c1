// Package stub is the stage-1 bootstrap: a minimal binary baked into
// instance images whose only job is to download the full orchestrator
// named by the [bootstrap] section and hand control to it. The stub
// deliberately uses nothing outside the standard library; it must keep
// working when everything else about the image is stale.
package stub

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// DefaultConfigPath is where instance images install the configuration.
	DefaultConfigPath = "/etc/graft.ini"

	// ConfigEnv overrides DefaultConfigPath.
	ConfigEnv = "GRAFT_INI"

	// DefaultEntry is the argv invoked on the downloaded binary when the
	// configuration does not name one.
	DefaultEntry = "run"
)

// Bootstrap holds the resolved [bootstrap] options.
type Bootstrap struct {
	// Source is the stage-2 artifact URI: http, https or file.
	Source string

	// Entry is the argv appended to the downloaded binary's invocation.
	Entry []string
}

// LoadBootstrap reads the [bootstrap] section from the configuration
// file. path "" resolves through ConfigEnv and DefaultConfigPath.
func LoadBootstrap(path string) (*Bootstrap, error) {
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path == "" {
		path = DefaultConfigPath
	}

	section, err := readSection(path, "bootstrap")
	if err != nil {
		return nil, err
	}

	source := section["source"]
	if source == "" {
		return nil, fmt.Errorf("%s: [bootstrap] source is required", path)
	}
	entry := strings.Fields(section["entry"])
	if len(entry) == 0 {
		entry = []string{DefaultEntry}
	}
	return &Bootstrap{Source: source, Entry: entry}, nil
}

// readSection parses just enough INI to serve the stub: named sections,
// key = value lines, comments with ; or #.
func readSection(path, name string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration: %w", err)
	}
	defer f.Close()

	section := make(map[string]string)
	current := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		if current != name {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		section[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read configuration: %w", err)
	}
	return section, nil
}

// fetch downloads the artifact into dir and returns its path, marked
// executable.
func fetch(source, dir string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("invalid source %s: %w", source, err)
	}

	name := filepath.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		name = "graft"
	}
	dest := filepath.Join(dir, name)
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return "", err
	}
	defer out.Close()

	var body io.ReadCloser
	switch u.Scheme {
	case "http", "https":
		resp, err := http.Get(source)
		if err != nil {
			return "", fmt.Errorf("cannot download %s: %w", source, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", fmt.Errorf("cannot download %s: %s", source, resp.Status)
		}
		body = resp.Body
	case "file", "":
		f, err := os.Open(u.Path)
		if err != nil {
			return "", fmt.Errorf("cannot read %s: %w", source, err)
		}
		body = f
	default:
		return "", fmt.Errorf("unsupported source scheme %s", u.Scheme)
	}
	defer body.Close()

	if _, err := io.Copy(out, body); err != nil {
		return "", fmt.Errorf("cannot save %s: %w", source, err)
	}
	return dest, nil
}

// Run performs the full stage-1 sequence: load configuration, download
// the stage-2 binary, execute it with the configured entry and the
// stub's own stdio, and return its exit code. Every stub-side failure is
// reported on stderr and yields exit code 1.
func Run(stderr io.Writer) int {
	bootstrap, err := LoadBootstrap("")
	if err != nil {
		fmt.Fprintf(stderr, "graft-stub: %v\n", err)
		return 1
	}

	dir, err := os.MkdirTemp("", "graft-stub-")
	if err != nil {
		fmt.Fprintf(stderr, "graft-stub: %v\n", err)
		return 1
	}
	defer os.RemoveAll(dir)

	binary, err := fetch(bootstrap.Source, dir)
	if err != nil {
		fmt.Fprintf(stderr, "graft-stub: %v\n", err)
		return 1
	}

	cmd := exec.Command(binary, bootstrap.Entry...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(stderr, "graft-stub: cannot run %s: %v\n", binary, err)
		return 1
	}
	return 0
}
