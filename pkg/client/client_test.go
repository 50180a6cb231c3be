package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/equigive/equigive/pkg/client"
)

var ctx = context.Background()

// stubCustodyServer mimics the custody service's JSON surface closely
// enough to exercise the SDK's request building and decoding.
func stubCustodyServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/farms/meadowbrook/vault", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		out := map[string]any{
			"farm_id":   "meadowbrook",
			"account":   "vault-acct-1",
			"recipient": "farmer-jones",
		}
		if r.Method == http.MethodPut {
			var req map[string]string
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req["recipient"] == "" {
				http.Error(w, `{"error":"recipient is required"}`, http.StatusBadRequest)
				return
			}
			out["created"] = true
		} else {
			out["balance"] = "40"
		}
		json.NewEncoder(w).Encode(out) //nolint:errcheck
	})

	mux.HandleFunc("/api/v1/donations", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		if req["farm_id"] == "nowhere" {
			http.Error(w, `{"error":"farm has no vault"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"farm_id": req["farm_id"],
			"account": "vault-acct-1",
			"minted":  req["amount"],
			"balance": "50",
		})
	})

	mux.HandleFunc("/api/v1/farms/meadowbrook/release", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"farm_id":   "meadowbrook",
			"recipient": "farmer-jones",
			"released":  "10",
			"balance":   "40",
		})
	})

	mux.HandleFunc("/api/v1/redemptions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"account": "farmer-jones",
			"burned":  "5",
			"balance": "5",
		})
	})

	mux.HandleFunc("/api/v1/supply", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"total_supply": "45"}) //nolint:errcheck
	})

	mux.HandleFunc("/api/v1/ledger/verify", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"valid": true}) //nolint:errcheck
	})

	mux.HandleFunc("/api/v1/ledger/events", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") != "0" || r.URL.Query().Get("limit") != "10" {
			http.Error(w, `{"error":"unexpected query"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"events": []map[string]any{
				{"seq": 1, "kind": "minted", "to": "vault-acct-1", "amount": 50, "ref": "donor-d", "prev_hash": strings.Repeat("0", 64), "hash": "aa"},
			},
		})
	})

	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, srv *httptest.Server) *client.Client {
	t.Helper()
	c, err := client.New(srv.URL, client.WithToken("test-token"))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCreateVault(t *testing.T) {
	srv := stubCustodyServer(t)
	defer srv.Close()
	c := newTestClient(t, srv)

	v, err := c.CreateVault(ctx, "meadowbrook", "farmer-jones")
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}
	if v.Account != "vault-acct-1" || !v.Created {
		t.Errorf("got %+v, want account vault-acct-1 created", v)
	}
}

func TestVault_balance(t *testing.T) {
	srv := stubCustodyServer(t)
	defer srv.Close()
	c := newTestClient(t, srv)

	v, err := c.Vault(ctx, "meadowbrook")
	if err != nil {
		t.Fatalf("Vault: %v", err)
	}
	if v.Balance != "40" || v.Recipient != "farmer-jones" {
		t.Errorf("got %+v", v)
	}
}

func TestDonateReleaseRedeem(t *testing.T) {
	srv := stubCustodyServer(t)
	defer srv.Close()
	c := newTestClient(t, srv)

	d, err := c.Donate(ctx, "meadowbrook", "50", "donor-d")
	if err != nil {
		t.Fatalf("Donate: %v", err)
	}
	if d.Minted != "50" || d.Balance != "50" {
		t.Errorf("donate: got %+v", d)
	}

	rel, err := c.Release(ctx, "meadowbrook", "10")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if rel.Released != "10" || rel.Balance != "40" {
		t.Errorf("release: got %+v", rel)
	}

	red, err := c.Redeem(ctx, "farmer-jones", "5", "receipt-9")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if red.Burned != "5" || red.Balance != "5" {
		t.Errorf("redeem: got %+v", red)
	}

	supply, err := c.Supply(ctx)
	if err != nil {
		t.Fatalf("Supply: %v", err)
	}
	if supply != "45" {
		t.Errorf("supply: got %s, want 45", supply)
	}
}

func TestDonate_apiError(t *testing.T) {
	srv := stubCustodyServer(t)
	defer srv.Close()
	c := newTestClient(t, srv)

	_, err := c.Donate(ctx, "nowhere", "5", "")
	if err == nil {
		t.Fatal("expected error for unknown farm")
	}
	apiErr, ok := err.(*client.APIError)
	if !ok {
		t.Fatalf("want *client.APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Message != "farm has no vault" {
		t.Errorf("got %+v", apiErr)
	}
}

func TestCreateVault_missingToken(t *testing.T) {
	srv := stubCustodyServer(t)
	defer srv.Close()

	c, err := client.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.CreateVault(ctx, "meadowbrook", "farmer-jones")
	apiErr, ok := err.(*client.APIError)
	if !ok || apiErr.Status != http.StatusUnauthorized {
		t.Errorf("want 401 APIError, got %v", err)
	}
}

func TestVerifyLedgerAndEvents(t *testing.T) {
	srv := stubCustodyServer(t)
	defer srv.Close()
	c := newTestClient(t, srv)

	valid, detail, err := c.VerifyLedger(ctx)
	if err != nil {
		t.Fatalf("VerifyLedger: %v", err)
	}
	if !valid || detail != "" {
		t.Errorf("got valid=%v detail=%q", valid, detail)
	}

	events, err := c.Events(ctx, 0, 10)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 || events[0].Kind != "minted" || events[0].Ref != "donor-d" {
		t.Errorf("got %+v", events)
	}
}

func TestWithTokenFile(t *testing.T) {
	srv := stubCustodyServer(t)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("test-token\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := client.New(srv.URL, client.WithTokenFile(path))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateVault(ctx, "meadowbrook", "farmer-jones"); err != nil {
		t.Errorf("CreateVault with file token: %v", err)
	}

	if _, err := client.New(srv.URL, client.WithTokenFile(filepath.Join(t.TempDir(), "missing"))); err == nil {
		t.Error("expected error for missing token file")
	}
}
