package acquirer

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/graftwork/graft/pkg/config"
)

func init() {
	Registry.MustRegister("sftp", newSFTP)
}

// defaultKeyFiles are tried in order when key_file is not configured.
// First boot runs as root, so root's keys are the only candidates.
var defaultKeyFiles = []string{
	"/root/.ssh/id_ed25519",
	"/root/.ssh/id_rsa",
}

const defaultKnownHosts = "/root/.ssh/known_hosts"

// sftpAcquirer downloads a payload directory tree over SFTP.
type sftpAcquirer struct {
	section    string
	host       string
	port       string
	user       string
	path       string
	keyFile    string
	knownHosts string
}

func newSFTP(cfg *config.Config, section string) (Acquirer, error) {
	opts, err := cfg.Absorb(section,
		[]string{"host", "path"},
		map[string]string{
			"user":        "root",
			"port":        "22",
			"key_file":    "",
			"known_hosts": defaultKnownHosts,
		})
	if err != nil {
		return nil, err
	}
	return &sftpAcquirer{
		section:    section,
		host:       opts["host"],
		port:       opts["port"],
		user:       opts["user"],
		path:       opts["path"],
		keyFile:    opts["key_file"],
		knownHosts: opts["known_hosts"],
	}, nil
}

func (a *sftpAcquirer) Fetch(ctx context.Context, dir string) error {
	log.Info().
		Str("host", a.host).
		Str("path", a.path).
		Str("dir", dir).
		Msg("fetching payload over sftp")

	signer, err := a.loadSigner()
	if err != nil {
		return err
	}
	hostKeys, err := a.hostKeyCallback()
	if err != nil {
		return err
	}

	client, err := ssh.Dial("tcp", net.JoinHostPort(a.host, a.port), &ssh.ClientConfig{
		User:            a.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         30 * time.Second,
	})
	if err != nil {
		return &AcquisitionError{Method: "sftp", Section: a.section, Reason: "ssh connection failed", Err: err}
	}
	defer client.Close()

	sc, err := sftp.NewClient(client)
	if err != nil {
		return &AcquisitionError{Method: "sftp", Section: a.section, Reason: "sftp subsystem failed", Err: err}
	}
	defer sc.Close()

	return a.download(sc, dir)
}

// download walks the remote tree and mirrors it locally, preserving
// permission bits so executable steps stay executable.
func (a *sftpAcquirer) download(sc *sftp.Client, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &AcquisitionError{Method: "sftp", Section: a.section, Reason: "cannot create payload directory", Err: err}
	}

	walker := sc.Walk(a.path)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return &AcquisitionError{Method: "sftp", Section: a.section, Reason: "remote walk failed", Err: err}
		}
		rel, err := filepath.Rel(a.path, walker.Path())
		if err != nil || strings.HasPrefix(rel, "..") {
			return &AcquisitionError{
				Method:  "sftp",
				Section: a.section,
				Reason:  fmt.Sprintf("remote path escapes payload root: %s", walker.Path()),
			}
		}
		target := filepath.Join(dir, rel)
		info := walker.Stat()

		if info.IsDir() {
			if err := os.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
				return &AcquisitionError{Method: "sftp", Section: a.section, Reason: "cannot create directory", Err: err}
			}
			continue
		}
		if !info.Mode().IsRegular() {
			log.Warn().Str("path", walker.Path()).Msg("skipping non-regular remote file")
			continue
		}
		if err := a.downloadFile(sc, walker.Path(), target, info.Mode().Perm()); err != nil {
			return err
		}
	}
	return nil
}

func (a *sftpAcquirer) downloadFile(sc *sftp.Client, remote, local string, mode os.FileMode) error {
	src, err := sc.Open(remote)
	if err != nil {
		return &AcquisitionError{Method: "sftp", Section: a.section, Reason: fmt.Sprintf("cannot open %s", remote), Err: err}
	}
	defer src.Close()

	dst, err := os.OpenFile(local, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return &AcquisitionError{Method: "sftp", Section: a.section, Reason: "cannot create local file", Err: err}
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return &AcquisitionError{Method: "sftp", Section: a.section, Reason: fmt.Sprintf("download of %s interrupted", remote), Err: err}
	}
	return nil
}

// loadSigner parses the configured private key, falling back to root's
// standard key files.
func (a *sftpAcquirer) loadSigner() (ssh.Signer, error) {
	candidates := defaultKeyFiles
	if a.keyFile != "" {
		candidates = []string{a.keyFile}
	}
	var lastErr error
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			lastErr = err
			continue
		}
		return signer, nil
	}
	return nil, &AcquisitionError{Method: "sftp", Section: a.section, Reason: "no usable private key", Err: lastErr}
}

func (a *sftpAcquirer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if a.knownHosts == config.Disabled || strings.EqualFold(a.knownHosts, "insecure") {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	callback, err := knownhosts.New(a.knownHosts)
	if err != nil {
		return nil, &AcquisitionError{Method: "sftp", Section: a.section, Reason: "cannot read known_hosts", Err: err}
	}
	return callback, nil
}
