package entitlement

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPOracleGranted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/entitlements" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "42" {
			t.Errorf("got user_id %q, want 42", got)
		}
		if got := r.URL.Query().Get("post_id"); got != "7" {
			t.Errorf("got post_id %q, want 7", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"granted": true}`))
	}))
	defer srv.Close()

	oracle, err := NewHTTPOracle(srv.URL)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	granted, err := oracle.Entitled(context.Background(), 42, 7)
	if err != nil {
		t.Fatalf("entitled: %v", err)
	}
	if !granted {
		t.Error("got granted=false, want true")
	}
}

func TestHTTPOracleDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"granted": false}`))
	}))
	defer srv.Close()

	oracle, err := NewHTTPOracle(srv.URL)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	granted, err := oracle.Entitled(context.Background(), 42, 7)
	if err != nil {
		t.Fatalf("entitled: %v", err)
	}
	if granted {
		t.Error("got granted=true, want false")
	}
}

func TestHTTPOracleServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	oracle, err := NewHTTPOracle(srv.URL)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	if _, err := oracle.Entitled(context.Background(), 42, 7); err == nil {
		t.Error("expected error on 500 response")
	}
}

func TestHTTPOracleRespectsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	oracle, err := NewHTTPOracle(srv.URL)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := oracle.Entitled(ctx, 42, 7); err == nil {
		t.Error("expected error on timed-out request")
	}
}

func TestNewHTTPOracleRequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPOracle("  "); err == nil {
		t.Error("expected error for empty base url")
	}
}
