package acquirer

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/graftwork/graft/pkg/config"
)

func init() {
	Registry.MustRegister("http", newHTTP)
}

// httpAcquirer downloads a gzipped tarball and unpacks it. An optional
// sha256 checksum guards against corrupt downloads; it is an integrity
// check only, not a signature.
type httpAcquirer struct {
	section  string
	url      string
	checksum string
}

func newHTTP(cfg *config.Config, section string) (Acquirer, error) {
	opts, err := cfg.Absorb(section,
		[]string{"url"},
		map[string]string{"checksum": ""})
	if err != nil {
		return nil, err
	}
	checksum := opts["checksum"]
	if checksum != "" && !strings.HasPrefix(checksum, "sha256:") {
		return nil, &config.ConfigurationError{
			Section: section,
			Key:     "checksum",
			Reason:  "checksum must be of the form sha256:<hex>",
		}
	}
	return &httpAcquirer{
		section:  section,
		url:      opts["url"],
		checksum: strings.TrimPrefix(checksum, "sha256:"),
	}, nil
}

func (a *httpAcquirer) Fetch(ctx context.Context, dir string) error {
	log.Info().Str("url", a.url).Str("dir", dir).Msg("downloading payload archive")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return &AcquisitionError{Method: "http", Section: a.section, Reason: "bad url", Err: err}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return &AcquisitionError{Method: "http", Section: a.section, Reason: "download failed", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &AcquisitionError{
			Method:  "http",
			Section: a.section,
			Reason:  fmt.Sprintf("download failed with status %s", resp.Status),
		}
	}

	archive, err := os.CreateTemp("", "graft-archive-")
	if err != nil {
		return &AcquisitionError{Method: "http", Section: a.section, Reason: "cannot create archive file", Err: err}
	}
	defer os.Remove(archive.Name())
	defer archive.Close()

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(archive, hash), resp.Body); err != nil {
		return &AcquisitionError{Method: "http", Section: a.section, Reason: "download interrupted", Err: err}
	}
	if a.checksum != "" {
		if sum := hex.EncodeToString(hash.Sum(nil)); sum != a.checksum {
			return &AcquisitionError{
				Method:  "http",
				Section: a.section,
				Reason:  fmt.Sprintf("checksum mismatch: expected sha256:%s, got sha256:%s", a.checksum, sum),
			}
		}
	}

	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		return &AcquisitionError{Method: "http", Section: a.section, Reason: "cannot rewind archive", Err: err}
	}
	if err := a.unpack(archive, dir); err != nil {
		return err
	}
	return nil
}

// unpack extracts a gzipped tarball into dir, rejecting entries that
// escape it.
func (a *httpAcquirer) unpack(r io.Reader, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &AcquisitionError{Method: "http", Section: a.section, Reason: "cannot create payload directory", Err: err}
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		return &AcquisitionError{Method: "http", Section: a.section, Reason: "archive is not gzip", Err: err}
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &AcquisitionError{Method: "http", Section: a.section, Reason: "corrupt archive", Err: err}
		}

		name := filepath.Clean(hdr.Name)
		if name == ".." || strings.HasPrefix(name, "../") || filepath.IsAbs(name) {
			return &AcquisitionError{
				Method:  "http",
				Section: a.section,
				Reason:  fmt.Sprintf("archive entry escapes payload directory: %s", hdr.Name),
			}
		}
		target := filepath.Join(dir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)&0o777); err != nil {
				return &AcquisitionError{Method: "http", Section: a.section, Reason: "cannot create directory", Err: err}
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &AcquisitionError{Method: "http", Section: a.section, Reason: "cannot create directory", Err: err}
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return &AcquisitionError{Method: "http", Section: a.section, Reason: "cannot create file", Err: err}
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return &AcquisitionError{Method: "http", Section: a.section, Reason: "cannot write file", Err: err}
			}
			f.Close()
		default:
			log.Warn().Str("entry", hdr.Name).Msg("skipping unsupported archive entry type")
		}
	}
}
