package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"archivist/internal/config"
	"archivist/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyProcessingCompleted(context.Background(), "Example"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	type captured struct {
		title    string
		message  string
		tags     string
		priority string
	}
	var got captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Uploads = true
	cfg.Notifications.Processing = true
	cfg.Notifications.Errors = true
	cfg.Notifications.DedupWindowSeconds = 0
	svc := notifications.NewService(&cfg)

	tests := []struct {
		name    string
		publish func() error
		want    captured
	}{
		{
			name:    "upload received",
			publish: func() error { return svc.NotifyUploadReceived(context.Background(), "All Hands", 2048) },
			want: captured{
				title:   "Archivist - Upload Received",
				message: "Upload received: All Hands (2048 bytes)",
				tags:    "archivist,upload,received",
			},
		},
		{
			name:    "processing completed",
			publish: func() error { return svc.NotifyProcessingCompleted(context.Background(), "All Hands") },
			want: captured{
				title:    "Archivist - Complete",
				message:  "Processing complete: All Hands",
				tags:     "archivist,pipeline,completed",
				priority: "high",
			},
		},
		{
			name: "error",
			publish: func() error {
				return svc.NotifyError(context.Background(), errors.New("boom"), "transcribe (item #4)")
			},
			want: captured{
				title:    "Archivist - Error",
				message:  "Error with transcribe (item #4): boom",
				tags:     "archivist,error,alert",
				priority: "high",
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.publish(); err != nil {
				t.Fatalf("publish failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("captured = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestNtfyServiceHonorsCategoryToggles(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Uploads = false
	cfg.Notifications.Processing = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyUploadReceived(context.Background(), "x", 1); err != nil {
		t.Fatalf("upload notify: %v", err)
	}
	if err := svc.NotifyProcessingCompleted(context.Background(), "x"); err != nil {
		t.Fatalf("processing notify: %v", err)
	}
	if err := svc.NotifyError(context.Background(), errors.New("x"), ""); err != nil {
		t.Fatalf("error notify: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected suppressed notifications, server saw %d", calls.Load())
	}
}

func TestNtfyServiceDedupesRepeatedMessages(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Errors = true
	cfg.Notifications.DedupWindowSeconds = 300
	svc := notifications.NewService(&cfg)

	for i := 0; i < 3; i++ {
		if err := svc.NotifyError(context.Background(), errors.New("same failure"), "docgen"); err != nil {
			t.Fatalf("notify %d: %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one delivery, server saw %d", calls.Load())
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
