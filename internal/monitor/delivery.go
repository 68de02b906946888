package monitor

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sessentry/sessentry/internal/device"
	"github.com/sessentry/sessentry/internal/loginstate"
	"github.com/sessentry/sessentry/internal/wxapi"
)

// Messenger is the slice of the API client the delivery workflow needs.
// [wxapi.Client] satisfies it.
type Messenger interface {
	SendText(ctx context.Context, wxid, toWxid, content string) error
	GetLoginQR(ctx context.Context, deviceName, deviceID string) (wxapi.QRLogin, error)
	DownloadImage(ctx context.Context, url string) ([]byte, error)
	UploadImage(ctx context.Context, wxid, toWxid, imageBase64 string) error
}

// staleQRAge is how old a leftover QR image must be before cleanup removes it.
const staleQRAge = 24 * time.Hour

// cleanupInterval rate-limits scratch directory sweeps.
const cleanupInterval = 10 * time.Minute

// Deliverer runs the warning delivery workflow: a text message to the
// target, a short pause, then a freshly generated login QR code image.
type Deliverer struct {
	api        Messenger
	src        *loginstate.Source
	scratchDir string
	log        *slog.Logger

	// qrDelay is the pause between the text message and the QR code.
	qrDelay time.Duration

	cleanupMu   sync.Mutex
	lastCleanup time.Time
}

// NewDeliverer creates a Deliverer that stores transient QR images under
// scratchDir.
func NewDeliverer(api Messenger, src *loginstate.Source, scratchDir string, log *slog.Logger) *Deliverer {
	return &Deliverer{
		api:        api,
		src:        src,
		scratchDir: scratchDir,
		log:        log,
		qrDelay:    time.Second,
	}
}

// Deliver sends the warning text to toWxid and follows up with a login QR
// code. The returned sent flag reports whether the text message went out;
// a QR failure after a successful text still counts as sent so the caller
// can record the warning as fired.
func (d *Deliverer) Deliver(ctx context.Context, toWxid, text string) (sent bool, err error) {
	id, err := d.src.Identity()
	if err != nil {
		return false, fmt.Errorf("resolving sender identity: %w", err)
	}

	if err := d.api.SendText(ctx, id.ID, toWxid, text); err != nil {
		return false, err
	}

	// Give the text message a moment to land before the image follows, so
	// the backend keeps the text/image ordering. Deliberately not a
	// cancellation point; shutdown is bounded by the monitor's stop timeout.
	time.Sleep(d.qrDelay)

	if err := d.SendLoginQR(ctx, toWxid); err != nil {
		return true, fmt.Errorf("sending login QR: %w", err)
	}
	return true, nil
}

// SendLoginQR generates a synthetic device identity, requests a login QR
// code for it, and uploads the image to the toWxid chat. The QR image is
// staged on disk briefly and removed once the upload finishes.
func (d *Deliverer) SendLoginQR(ctx context.Context, toWxid string) error {
	id, err := d.src.Identity()
	if err != nil {
		return fmt.Errorf("resolving sender identity: %w", err)
	}

	deviceID := device.NewID()
	deviceName := device.NewName()

	qr, err := d.api.GetLoginQR(ctx, deviceName, deviceID)
	if err != nil {
		return err
	}
	if qr.UUID == "" {
		return fmt.Errorf("login QR response has no Uuid")
	}

	img, err := d.api.DownloadImage(ctx, qr.QRURL)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(d.scratchDir, 0o755); err != nil {
		return fmt.Errorf("creating scratch dir: %w", err)
	}
	path := filepath.Join(d.scratchDir, fmt.Sprintf("qr_%s_%d.png", qr.UUID, time.Now().Unix()))
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return fmt.Errorf("staging QR image: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			d.log.Warn("removing staged QR image", "path", path, "error", rmErr)
		}
	}()

	encoded := base64.StdEncoding.EncodeToString(img)
	if err := d.api.UploadImage(ctx, id.ID, toWxid, encoded); err != nil {
		return err
	}

	d.log.Info("login QR delivered", "to", toWxid, "device_id", deviceID)
	d.cleanupStaleImages()
	return nil
}

// cleanupStaleImages removes QR images left behind by interrupted deliveries.
// Sweeps are rate limited so frequent deliveries don't hammer the directory.
func (d *Deliverer) cleanupStaleImages() {
	d.cleanupMu.Lock()
	if time.Since(d.lastCleanup) < cleanupInterval {
		d.cleanupMu.Unlock()
		return
	}
	d.lastCleanup = time.Now()
	d.cleanupMu.Unlock()

	matches, err := filepath.Glob(filepath.Join(d.scratchDir, "qr_*.png"))
	if err != nil {
		return
	}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > staleQRAge {
			if err := os.Remove(m); err == nil {
				d.log.Info("removed stale QR image", "path", m)
			}
		}
	}
}
