// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package httpengine is the reference updater engine: it fetches a JSON
// release manifest, downloads and checksums the artifact, and stages it
// for installation, emitting the engine callbacks in order. Signature
// verification and appcast parsing belong to a production engine; this
// one verifies a sha256 only.
package httpengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/rs/zerolog/log"

	"github.com/driftapps/driftup/pkg/engine"
)

type manifest struct {
	Version  string `json:"version"`
	Build    string `json:"build"`
	Critical bool   `json:"critical"`
	URL      string `json:"url"`
	SHA256   string `json:"sha256"`
	Length   int64  `json:"length"`
}

type Engine struct {
	manifestURL    string
	currentVersion string
	stagingDir     string
	client         *http.Client
	delegate       engine.Delegate

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(manifestURL, currentVersion, stagingDir string, delegate engine.Delegate) *Engine {
	return &Engine{
		manifestURL:    manifestURL,
		currentVersion: currentVersion,
		stagingDir:     stagingDir,
		client:         &http.Client{Timeout: 5 * time.Minute},
		delegate:       delegate,
	}
}

func (e *Engine) Check(ctx context.Context, mode engine.CheckMode) error {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	d := e.delegate
	d.CheckStarted()

	item, err := e.fetchManifest(ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch release manifest: %w", err)
		d.CycleFinished(err)
		return err
	}

	if !e.isNewer(item.Version) {
		d.NoUpdateFound("up-to-date")
		d.CycleFinished(nil)
		return engine.ErrNoUpdateFound
	}
	d.UpdateFound(item)

	if mode == engine.CheckOnly {
		d.CycleFinished(nil)
		return nil
	}

	d.WillDownload()
	artifactPath, err := e.download(ctx, item)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", engine.ErrDownloadFailed, err)
		d.CycleFinished(wrapped)
		return wrapped
	}
	d.DidDownload()

	d.WillExtract()
	if err := e.stage(artifactPath, item); err != nil {
		err = fmt.Errorf("failed to stage update: %w", err)
		d.CycleFinished(err)
		return err
	}
	d.ExtractionProgress(1.0)
	d.DidExtract()

	if d.WillInstallOnQuit(func() { e.installNow() }) {
		d.CycleFinished(nil)
		return nil
	}
	e.installNow()
	return nil
}

func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) installNow() {
	d := e.delegate
	d.WillInstall()
	d.WillRelaunch()
	d.CycleFinished(nil)
}

func (e *Engine) fetchManifest(ctx context.Context) (engine.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.manifestURL, nil)
	if err != nil {
		return engine.Item{}, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return engine.Item{}, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Err(closeErr).Msg("failed to close manifest response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return engine.Item{}, fmt.Errorf("manifest request returned HTTP_%d", resp.StatusCode)
	}

	var m manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return engine.Item{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return engine.Item{
		Version:  m.Version,
		Build:    m.Build,
		Critical: m.Critical,
		URL:      m.URL,
		SHA256:   m.SHA256,
		Length:   m.Length,
	}, nil
}

func (e *Engine) isNewer(candidate string) bool {
	cur, err := goversion.NewVersion(e.currentVersion)
	if err != nil {
		log.Err(err).Msgf("unparseable running version %q", e.currentVersion)
		return false
	}
	cand, err := goversion.NewVersion(candidate)
	if err != nil {
		log.Err(err).Msgf("unparseable candidate version %q", candidate)
		return false
	}
	return cand.GreaterThan(cur)
}

// download fetches the artifact to a temp file, reporting fractional
// progress, and verifies its sha256 before returning the path.
func (e *Engine) download(ctx context.Context, item engine.Item) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Err(closeErr).Msg("failed to close artifact response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("artifact request returned HTTP_%d", resp.StatusCode)
	}

	out, err := os.CreateTemp("", "driftup-artifact-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil {
			log.Err(closeErr).Msg("failed to close artifact temp file")
		}
	}()

	hash := sha256.New()
	counter := &progressWriter{total: item.Length, report: e.delegate.DownloadProgress}
	if _, err := io.Copy(io.MultiWriter(out, hash, counter), resp.Body); err != nil {
		_ = os.Remove(out.Name())
		return "", err
	}

	sum := hex.EncodeToString(hash.Sum(nil))
	if item.SHA256 != "" && sum != item.SHA256 {
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("checksum mismatch: expected %s, got %s", item.SHA256, sum)
	}
	return out.Name(), nil
}

// stage moves the verified artifact into the staging directory where the
// installer picks it up on relaunch or quit.
func (e *Engine) stage(artifactPath string, item engine.Item) error {
	if err := os.MkdirAll(e.stagingDir, 0o755); err != nil {
		return err
	}
	staged := filepath.Join(e.stagingDir, fmt.Sprintf("pending-%s-%s", item.Version, item.Build))
	if err := os.Rename(artifactPath, staged); err != nil {
		// Rename fails across filesystems; fall back to a copy.
		return copyFile(artifactPath, staged)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil {
			log.Err(closeErr).Msg("failed to close staging source")
		}
	}()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

type progressWriter struct {
	total   int64
	written int64
	report  func(fraction float64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.total > 0 {
		w.report(float64(w.written) / float64(w.total))
	}
	return len(p), nil
}
