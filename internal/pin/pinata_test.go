package pin

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, endpoint string) *PinataClient {
	t.Helper()
	client, err := NewPinataClient(PinataOptions{
		Endpoint:    endpoint,
		GatewayBase: "https://gateway.test/ipfs",
		JWT:         "test-jwt",
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	client.sleep = func(context.Context, time.Duration) error { return nil }
	return client
}

func TestPinSuccess(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		w.Write([]byte(`{"IpfsHash":"QmTestHash","PinSize":11}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	pinned, err := client.Pin(context.Background(), CategoryPrescription, "rx.pdf", strings.NewReader("hello bytes"), 11)
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	if pinned.CID != "QmTestHash" {
		t.Fatalf("expected CID QmTestHash, got %s", pinned.CID)
	}
	if pinned.URL != "https://gateway.test/ipfs/QmTestHash" {
		t.Fatalf("unexpected gateway URL %s", pinned.URL)
	}
	if gotAuth != "Bearer test-jwt" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
}

func TestPinRetriesTransientFailures(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"IpfsHash":"QmRetried","PinSize":4}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	pinned, err := client.Pin(context.Background(), CategoryMRI, "scan.dcm", strings.NewReader("data"), 4)
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if pinned.CID != "QmRetried" {
		t.Fatalf("expected CID QmRetried, got %s", pinned.CID)
	}
}

func TestPinGivesUpAfterThreeAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Pin(context.Background(), CategoryXRay, "xray.png", strings.NewReader("data"), 4)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestPinClientErrorNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Pin(context.Background(), CategorySupporting, "notes.txt", strings.NewReader("data"), 4)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}

func TestPinRejectsOversizedUpload(t *testing.T) {
	client := newTestClient(t, "http://unused.invalid")
	size := CategoryPrescription.MaxSize() + 1

	_, err := client.Pin(context.Background(), CategoryPrescription, "big.pdf", bytes.NewReader(nil), size)

	var tooLarge *TooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected TooLargeError, got %v", err)
	}
	if tooLarge.Max != CategoryPrescription.MaxSize() {
		t.Fatalf("expected max %d, got %d", CategoryPrescription.MaxSize(), tooLarge.Max)
	}
}

func TestPinRejectsEmptyAndUnknown(t *testing.T) {
	client := newTestClient(t, "http://unused.invalid")

	if _, err := client.Pin(context.Background(), CategoryResearchDoc, "empty.pdf", strings.NewReader(""), 0); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
	if _, err := client.Pin(context.Background(), Category("video"), "clip.mp4", strings.NewReader("x"), 1); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestCategoryCeilings(t *testing.T) {
	cases := []struct {
		category Category
		max      int64
	}{
		{CategoryPrescription, 10 * megabyte},
		{CategoryMRI, 15 * megabyte},
		{CategoryXRay, 15 * megabyte},
		{CategoryResearchDoc, 25 * megabyte},
		{CategorySupporting, 20 * megabyte},
	}
	for _, tc := range cases {
		if got := tc.category.MaxSize(); got != tc.max {
			t.Errorf("%s: expected ceiling %d, got %d", tc.category, tc.max, got)
		}
		if err := CheckSize(tc.category, tc.max); err != nil {
			t.Errorf("%s: size at ceiling should pass, got %v", tc.category, err)
		}
		if err := CheckSize(tc.category, tc.max+1); err == nil {
			t.Errorf("%s: size above ceiling should fail", tc.category)
		}
	}
}
