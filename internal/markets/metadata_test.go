package markets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

func TestFetchTickSize(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    fixedpoint.Amount
		wantErr bool
	}{
		{
			name:   "reported tick size",
			status: http.StatusOK,
			body:   `{"minimum_tick_size": 0.001}`,
			want:   fixedpoint.MustParse("0.001"),
		},
		{
			name:   "zero tick size falls back to default",
			status: http.StatusOK,
			body:   `{"minimum_tick_size": 0}`,
			want:   DefaultTickSize,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{}`,
			wantErr: true,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/tick-size" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("token_id"); got != "777" {
					t.Errorf("token_id = %q, want 777", got)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewMetadataClient(srv.URL)
			got, err := client.FetchTickSize(context.Background(), "777")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchTickSize: %v", err)
			}
			if got != tt.want {
				t.Errorf("tick size = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFetchMinOrderSize(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   fixedpoint.Amount
	}{
		{
			name:   "top level min size",
			status: http.StatusOK,
			body:   `{"min_size": 15}`,
			want:   fixedpoint.FromInt(15),
		},
		{
			name:   "nested market min size",
			status: http.StatusOK,
			body:   `{"market": {"minimum_order_size": 20}}`,
			want:   fixedpoint.FromInt(20),
		},
		{
			name:   "top level wins over nested",
			status: http.StatusOK,
			body:   `{"min_size": 15, "market": {"minimum_order_size": 20}}`,
			want:   fixedpoint.FromInt(15),
		},
		{
			name:   "missing values fall back to default",
			status: http.StatusOK,
			body:   `{}`,
			want:   DefaultMinOrderSize,
		},
		{
			name:   "server error falls back to default",
			status: http.StatusNotFound,
			body:   ``,
			want:   DefaultMinOrderSize,
		},
		{
			name:   "malformed body falls back to default",
			status: http.StatusOK,
			body:   `not json`,
			want:   DefaultMinOrderSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/book" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewMetadataClient(srv.URL)
			got, err := client.FetchMinOrderSize(context.Background(), "777")
			if err != nil {
				t.Fatalf("FetchMinOrderSize: %v", err)
			}
			if got != tt.want {
				t.Errorf("min order size = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFetchRulesSubstitutesDefaults(t *testing.T) {
	// Tick size endpoint errors, book endpoint answers. FetchRules must
	// still return a usable pair.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tick-size":
			w.WriteHeader(http.StatusInternalServerError)
		case "/book":
			w.Write([]byte(`{"min_size": 25}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewMetadataClient(srv.URL)
	tickSize, minOrderSize, err := client.FetchRules(context.Background(), "777")
	if err != nil {
		t.Fatalf("FetchRules: %v", err)
	}
	if tickSize != DefaultTickSize {
		t.Errorf("tick size = %s, want default %s", tickSize, DefaultTickSize)
	}
	if minOrderSize != fixedpoint.FromInt(25) {
		t.Errorf("min order size = %s, want 25", minOrderSize)
	}
}
