package wxapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendText(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(`{"Success": true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/VXAPI")
	if err := c.SendText(context.Background(), "wxid_me", "wxid_target", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	if gotPath != "/VXAPI/Msg/SendTxt" {
		t.Errorf("path = %q, want /VXAPI/Msg/SendTxt", gotPath)
	}
	if gotBody["Wxid"] != "wxid_me" || gotBody["ToWxid"] != "wxid_target" || gotBody["Content"] != "hello" {
		t.Errorf("body = %v", gotBody)
	}
	if gotBody["Type"] != float64(1) {
		t.Errorf("Type = %v, want 1", gotBody["Type"])
	}
	if gotBody["At"] != "" {
		t.Errorf("At = %v, want empty string", gotBody["At"])
	}
}

func TestSendTextServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.SendText(context.Background(), "a", "b", "c")
	if err == nil {
		t.Fatal("expected error on 400 response")
	}
}

func TestSendTextAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Success": false, "Message": "not logged in"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.SendText(context.Background(), "a", "b", "c")
	if err == nil {
		t.Fatal("expected error on Success=false")
	}
	if !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("err = %v, want message included", err)
	}
}

func TestGetLoginQR(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Login/GetQR" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"Success": true, "Data": {"QrUrl": "http://example.test/qr.png", "Uuid": "u-1"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	qr, err := c.GetLoginQR(context.Background(), "Alice Smith's iPad", "49abcdef")
	if err != nil {
		t.Fatalf("GetLoginQR: %v", err)
	}
	if qr.QRURL != "http://example.test/qr.png" {
		t.Errorf("QRURL = %q", qr.QRURL)
	}
	if qr.UUID != "u-1" {
		t.Errorf("UUID = %q", qr.UUID)
	}
	if gotBody["DeviceName"] != "Alice Smith's iPad" || gotBody["DeviceID"] != "49abcdef" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestGetLoginQRMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Success": true, "Data": {}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.GetLoginQR(context.Background(), "n", "d"); err == nil {
		t.Fatal("expected error when QrUrl is absent")
	}
}

func TestUploadImageFieldNames(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Msg/UploadImg" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"Success": true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.UploadImage(context.Background(), "wxid_me", "wxid_target", "aGVsbG8="); err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if gotBody["Wxid"] != "wxid_me" || gotBody["ToWxid"] != "wxid_target" || gotBody["Base64"] != "aGVsbG8=" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestDownloadImage(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	data, err := c.DownloadImage(context.Background(), srv.URL+"/qr.png")
	if err != nil {
		t.Fatalf("DownloadImage: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("data = %v, want %v", data, payload)
	}
}

func TestDownloadImageEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.DownloadImage(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error on empty body")
	}
}

func TestRetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"Success": true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.SendText(context.Background(), "a", "b", "c"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}
