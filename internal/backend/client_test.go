package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPingSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/agents/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fsk_test" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(AgentInfo{AgentKey: "agent-7", DisplayName: "Bridge Crew", Status: "active"})
	}))
	defer srv.Close()

	info, err := NewWithKey(srv.URL, "fsk_test").Ping(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.AgentKey != "agent-7" || info.DisplayName != "Bridge Crew" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestPingReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewWithKey(srv.URL, "bad").Ping(context.Background())
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("error lacks status and body: %v", err)
	}
}

func TestRegisterRequiresAPIKeyInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode register request: %v", err)
		}
		if req.DisplayName != "Bridge Crew" {
			t.Errorf("display name = %q", req.DisplayName)
		}
		json.NewEncoder(w).Encode(RegisterResponse{AgentKey: "agent-7"}) // no api_key
	}))
	defer srv.Close()

	_, err := NewWithKey(srv.URL, "").Register(context.Background(), RegisterRequest{DisplayName: "Bridge Crew"})
	if err == nil {
		t.Fatal("expected error when backend returns no API key")
	}
}

func TestCreateUploadTicketValidatesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(UploadTicket{ID: "t-1"}) // missing upload_url
	}))
	defer srv.Close()

	_, err := NewWithKey(srv.URL, "k").CreateUploadTicket(context.Background(), TicketRequest{
		EventKey: "BR-2024-017:ev-1", SHA256: "abc", SizeBytes: 10,
	})
	if err == nil {
		t.Fatal("expected error for incomplete ticket")
	}
}

func TestUploadArchiveResolvesRelativeURL(t *testing.T) {
	var gotPath, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewWithKey(srv.URL, "k")
	ticket := &UploadTicket{ID: "t-1", UploadURL: "/api/v1/uploads/t-1/archive"}
	err := c.UploadArchive(context.Background(), ticket, strings.NewReader("tarball"), int64(len("tarball")))
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/api/v1/uploads/t-1/archive" {
		t.Errorf("path = %s", gotPath)
	}
	if gotType != "application/gzip" {
		t.Errorf("content type = %s", gotType)
	}
	if string(gotBody) != "tarball" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestUploadStatusDone(t *testing.T) {
	cases := []struct {
		status string
		done   bool
	}{
		{"pending", false},
		{"processing", false},
		{"processed", true},
		{"failed", true},
	}
	for _, tc := range cases {
		s := &UploadState{Status: tc.status}
		if s.Done() != tc.done {
			t.Errorf("Done() for %s = %v, want %v", tc.status, s.Done(), tc.done)
		}
	}
}

func TestUploadStatusFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/uploads/t-9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(UploadState{ID: "t-9", Status: "processed", RemoteID: "srv-42"})
	}))
	defer srv.Close()

	st, err := NewWithKey(srv.URL, "k").UploadStatus(context.Background(), "t-9")
	if err != nil {
		t.Fatal(err)
	}
	if st.RemoteID != "srv-42" || !st.Done() {
		t.Fatalf("unexpected state: %+v", st)
	}
}
