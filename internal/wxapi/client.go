// Package wxapi is a thin client for the local messaging-protocol API
// service. It covers the handful of endpoints the daemon needs: sending a
// text message, fetching a login QR code, and uploading an image to a chat.
package wxapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// maxImageBytes caps how much of a QR image download is read into memory.
const maxImageBytes = 8 << 20 // 8 MiB

// Client talks to the messaging API service at a fixed base URL.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewClient creates a Client for the given base URL
// (for example "http://127.0.0.1:9000/VXAPI").
func NewClient(baseURL string) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.Logger = nil // Silence the default retryablehttp logger
	c.HTTPClient.Timeout = 30 * time.Second
	return &Client{baseURL: baseURL, http: c}
}

// ///////////////////////////////////////////////
// Wire types
// ///////////////////////////////////////////////

// envelope is the common response wrapper the API service returns.
type envelope struct {
	Success bool            `json:"Success"`
	Message string          `json:"Message"`
	Data    json.RawMessage `json:"Data"`
}

// QRLogin is the payload returned by the login QR endpoint.
type QRLogin struct {
	QRURL string `json:"QrUrl"`
	UUID  string `json:"Uuid"`
}

// ///////////////////////////////////////////////
// Endpoints
// ///////////////////////////////////////////////

// SendText sends a plain text message from wxid to the toWxid chat.
func (c *Client) SendText(ctx context.Context, wxid, toWxid, content string) error {
	body := map[string]any{
		"Wxid":    wxid,
		"ToWxid":  toWxid,
		"Content": content,
		"Type":    1,
		"At":      "",
	}
	_, err := c.post(ctx, "/Msg/SendTxt", body)
	if err != nil {
		return fmt.Errorf("sending text: %w", err)
	}
	return nil
}

// UploadImage sends a base64-encoded image from wxid to the toWxid chat.
func (c *Client) UploadImage(ctx context.Context, wxid, toWxid, imageBase64 string) error {
	body := map[string]any{
		"ToWxid": toWxid,
		"Base64": imageBase64,
		"Wxid":   wxid,
	}
	_, err := c.post(ctx, "/Msg/UploadImg", body)
	if err != nil {
		return fmt.Errorf("uploading image: %w", err)
	}
	return nil
}

// GetLoginQR requests a fresh login QR code for the given device identity.
func (c *Client) GetLoginQR(ctx context.Context, deviceName, deviceID string) (QRLogin, error) {
	body := map[string]any{
		"DeviceName": deviceName,
		"DeviceID":   deviceID,
	}
	data, err := c.post(ctx, "/Login/GetQR", body)
	if err != nil {
		return QRLogin{}, fmt.Errorf("requesting login QR: %w", err)
	}

	var qr QRLogin
	if err := json.Unmarshal(data, &qr); err != nil {
		return QRLogin{}, fmt.Errorf("parsing login QR response: %w", err)
	}
	if qr.QRURL == "" {
		return QRLogin{}, fmt.Errorf("login QR response has no QrUrl")
	}
	return qr, nil
}

// DownloadImage fetches the image at url, typically a QR code returned by
// [Client.GetLoginQR]. The download is capped at 8 MiB.
func (c *Client) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating image request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d byte limit", maxImageBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image download returned an empty body")
	}
	return data, nil
}

// post sends a JSON POST to the given API path and returns the Data payload.
// A non-2xx status or a Success=false envelope is reported as an error.
func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if !env.Success {
		if env.Message != "" {
			return nil, fmt.Errorf("api error: %s", env.Message)
		}
		return nil, fmt.Errorf("api reported failure")
	}
	return env.Data, nil
}
