package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, handler http.HandlerFunc) SegmentationClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewSegmentationClient(testLogger(t), srv.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewSegmentationClient: %v", err)
	}
	return client
}

func TestSegmentSuccess(t *testing.T) {
	var gotReq segmentRequest
	client := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/segment" {
			t.Errorf("path: want=/segment got=%s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"mask_paths": []string{"/m/a.png", "/m/b.png"},
		})
	})

	masks, err := client.Segment(context.Background(),
		[]string{"/p/a.png", "/p/b.png"},
		[]string{"/s/i.png"},
		[]string{"/s/l.png"},
	)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(masks) != 2 || masks[0] != "/m/a.png" || masks[1] != "/m/b.png" {
		t.Fatalf("masks: got %v", masks)
	}
	if len(gotReq.ImagePaths) != 2 || len(gotReq.SupportImagePaths) != 1 || len(gotReq.SupportLabelPaths) != 1 {
		t.Fatalf("request payload: got %+v", gotReq)
	}
}

func TestSegmentStructuredErrorSurfacedVerbatim(t *testing.T) {
	client := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "support set shape mismatch"})
	})

	_, err := client.Segment(context.Background(), []string{"/p/a.png"}, nil, nil)
	var engErr *EngineError
	if !errors.As(err, &engErr) {
		t.Fatalf("want EngineError, got %v", err)
	}
	if engErr.Message != "support set shape mismatch" {
		t.Fatalf("message: want verbatim engine message, got %q", engErr.Message)
	}
}

func TestSegmentErrorStatusWithoutPayloadIsUnavailable(t *testing.T) {
	client := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Segment(context.Background(), []string{"/p/a.png"}, nil, nil)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("want ErrEngineUnavailable, got %v", err)
	}
}

func TestSegmentTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	client, err := NewSegmentationClient(testLogger(t), srv.URL, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSegmentationClient: %v", err)
	}

	_, err = client.Segment(context.Background(), []string{"/p/a.png"}, nil, nil)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("want ErrEngineUnavailable on timeout, got %v", err)
	}
}

func TestSegmentTransportFailureIsUnavailable(t *testing.T) {
	// Point at a closed server.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	client, err := NewSegmentationClient(testLogger(t), url, time.Second)
	if err != nil {
		t.Fatalf("NewSegmentationClient: %v", err)
	}

	_, err = client.Segment(context.Background(), []string{"/p/a.png"}, nil, nil)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("want ErrEngineUnavailable on transport failure, got %v", err)
	}
}

func TestSegmentMalformedResponseIsUnavailable(t *testing.T) {
	client := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := client.Segment(context.Background(), []string{"/p/a.png"}, nil, nil)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("want ErrEngineUnavailable on malformed body, got %v", err)
	}
}

func TestSegmentMaskCountMismatchIsUnavailable(t *testing.T) {
	client := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"mask_paths": []string{"/m/a.png"}})
	})

	_, err := client.Segment(context.Background(), []string{"/p/a.png", "/p/b.png"}, nil, nil)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("want ErrEngineUnavailable on count mismatch, got %v", err)
	}
}

func TestNewSegmentationClientRequiresBaseURL(t *testing.T) {
	if _, err := NewSegmentationClient(testLogger(t), "  ", time.Second); err == nil {
		t.Fatalf("expected error for empty base URL")
	}
}
