package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equigive/equigive/internal/api/handler"
	"github.com/equigive/equigive/internal/auth"
	"github.com/equigive/equigive/internal/custody"
	"github.com/equigive/equigive/internal/ledger"
)

const (
	minter   = ledger.Address("svc-donation-intake")
	burner   = ledger.Address("svc-redemption")
	operator = ledger.Address("svc-onboarding")
	farmer   = ledger.Address("farmer-jones")
)

type testAPI struct {
	router *gin.Engine
	tokens *auth.Issuer
	ledger *ledger.MemoryLedger
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	roles := ledger.NewRoles(
		[]ledger.Address{minter},
		[]ledger.Address{burner},
		[]ledger.Address{operator},
	)
	l := ledger.NewMemory(roles)
	reg := custody.NewMemory(l, roles)
	tokens := auth.NewIssuer([]byte("test-secret"), "http://test", time.Hour)
	logger := zap.NewNop()

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.Use(handler.RequireCaller(tokens))
	handler.NewVaultHandler(reg, logger).Register(v1)
	handler.NewDonationHandler(reg, l, logger).Register(v1)
	handler.NewRedemptionHandler(l, logger).Register(v1)
	handler.NewLedgerHandler(l, logger).Register(v1)

	return &testAPI{router: router, tokens: tokens, ledger: l}
}

// do executes a request as the given caller and decodes the JSON response.
func (a *testAPI) do(t *testing.T, caller ledger.Address, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		tok, err := a.tokens.Issue(caller, "")
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var out map[string]any
	if len(rec.Body.Bytes()) > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func TestAPI_requiresToken(t *testing.T) {
	a := newTestAPI(t)

	code, _ := a.do(t, "", http.MethodGet, "/api/v1/supply", nil)
	if code != http.StatusUnauthorized {
		t.Errorf("no token: got %d, want 401", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/supply", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bogus token: got %d, want 401", rec.Code)
	}
}

func TestAPI_donationLifecycle(t *testing.T) {
	a := newTestAPI(t)

	// Onboard the farm.
	code, body := a.do(t, operator, http.MethodPut, "/api/v1/farms/meadowbrook/vault",
		map[string]string{"recipient": string(farmer)})
	if code != http.StatusOK {
		t.Fatalf("create vault: got %d (%v)", code, body)
	}
	if body["created"] != true {
		t.Errorf("create vault: created=%v, want true", body["created"])
	}

	// Record a 50-unit donation.
	code, body = a.do(t, minter, http.MethodPost, "/api/v1/donations",
		map[string]string{"farm_id": "meadowbrook", "amount": "50", "donor_ref": "donor-d"})
	if code != http.StatusOK {
		t.Fatalf("donate: got %d (%v)", code, body)
	}
	if body["balance"] != "50" {
		t.Errorf("vault balance after donation: got %v, want 50", body["balance"])
	}

	// Farmer releases 10.
	code, body = a.do(t, farmer, http.MethodPost, "/api/v1/farms/meadowbrook/release",
		map[string]string{"amount": "10"})
	if code != http.StatusOK {
		t.Fatalf("release: got %d (%v)", code, body)
	}
	if body["balance"] != "40" {
		t.Errorf("vault balance after release: got %v, want 40", body["balance"])
	}

	// Burner retires 5 from the farmer's account.
	code, body = a.do(t, burner, http.MethodPost, "/api/v1/redemptions",
		map[string]string{"account": string(farmer), "amount": "5", "ref": "receipt-9"})
	if code != http.StatusOK {
		t.Fatalf("redeem: got %d (%v)", code, body)
	}
	if body["balance"] != "5" {
		t.Errorf("farmer balance after burn: got %v, want 5", body["balance"])
	}

	// Read-side checks.
	code, body = a.do(t, farmer, http.MethodGet, "/api/v1/farms/meadowbrook/vault", nil)
	if code != http.StatusOK || body["balance"] != "40" {
		t.Errorf("vault get: code %d balance %v, want 200/40", code, body["balance"])
	}
	code, body = a.do(t, farmer, http.MethodGet, "/api/v1/supply", nil)
	if code != http.StatusOK || body["total_supply"] != "45" {
		t.Errorf("supply: code %d total %v, want 200/45", code, body["total_supply"])
	}
}

func TestAPI_errorMapping(t *testing.T) {
	a := newTestAPI(t)

	// Onboarding by a non-operator → 403.
	code, _ := a.do(t, farmer, http.MethodPut, "/api/v1/farms/meadowbrook/vault",
		map[string]string{"recipient": string(farmer)})
	if code != http.StatusForbidden {
		t.Errorf("create vault as non-operator: got %d, want 403", code)
	}

	// Donation to an unknown farm → 404.
	code, _ = a.do(t, minter, http.MethodPost, "/api/v1/donations",
		map[string]string{"farm_id": "nowhere", "amount": "5"})
	if code != http.StatusNotFound {
		t.Errorf("donate to unknown farm: got %d, want 404", code)
	}

	if code, _ := a.do(t, operator, http.MethodPut, "/api/v1/farms/meadowbrook/vault",
		map[string]string{"recipient": string(farmer)}); code != http.StatusOK {
		t.Fatalf("create vault: got %d", code)
	}

	// Mint by a non-minter → 403.
	code, _ = a.do(t, operator, http.MethodPost, "/api/v1/donations",
		map[string]string{"farm_id": "meadowbrook", "amount": "5"})
	if code != http.StatusForbidden {
		t.Errorf("donate as non-minter: got %d, want 403", code)
	}

	// Zero amount → 422.
	code, _ = a.do(t, minter, http.MethodPost, "/api/v1/donations",
		map[string]string{"farm_id": "meadowbrook", "amount": "0"})
	if code != http.StatusUnprocessableEntity {
		t.Errorf("donate zero: got %d, want 422", code)
	}

	// Malformed amount → 400.
	code, _ = a.do(t, minter, http.MethodPost, "/api/v1/donations",
		map[string]string{"farm_id": "meadowbrook", "amount": "fifty"})
	if code != http.StatusBadRequest {
		t.Errorf("donate malformed amount: got %d, want 400", code)
	}

	// Overdrawn release → 422, wrong caller → 403.
	code, _ = a.do(t, farmer, http.MethodPost, "/api/v1/farms/meadowbrook/release",
		map[string]string{"amount": "10"})
	if code != http.StatusUnprocessableEntity {
		t.Errorf("overdrawn release: got %d, want 422", code)
	}
	code, _ = a.do(t, operator, http.MethodPost, "/api/v1/farms/meadowbrook/release",
		map[string]string{"amount": "1"})
	if code != http.StatusForbidden {
		t.Errorf("release as non-recipient: got %d, want 403", code)
	}

	// Burn from an empty account → 422.
	code, _ = a.do(t, burner, http.MethodPost, "/api/v1/redemptions",
		map[string]string{"account": "empty", "amount": "1"})
	if code != http.StatusUnprocessableEntity {
		t.Errorf("overdrawn burn: got %d, want 422", code)
	}
}

func TestAPI_vaultCreateIdempotent(t *testing.T) {
	a := newTestAPI(t)

	code, first := a.do(t, operator, http.MethodPut, "/api/v1/farms/meadowbrook/vault",
		map[string]string{"recipient": string(farmer)})
	if code != http.StatusOK {
		t.Fatalf("first create: got %d", code)
	}

	// Retried onboarding is a 200, not a conflict, and keeps the original
	// recipient.
	code, second := a.do(t, operator, http.MethodPut, "/api/v1/farms/meadowbrook/vault",
		map[string]string{"recipient": "someone-else"})
	if code != http.StatusOK {
		t.Fatalf("second create: got %d", code)
	}
	if second["created"] != false {
		t.Errorf("second create: created=%v, want false", second["created"])
	}
	if second["account"] != first["account"] {
		t.Errorf("second create returned different vault: %v vs %v", second["account"], first["account"])
	}
	if second["recipient"] != string(farmer) {
		t.Errorf("second create altered recipient: %v", second["recipient"])
	}
}

func TestAPI_auditEndpoints(t *testing.T) {
	a := newTestAPI(t)

	if code, _ := a.do(t, operator, http.MethodPut, "/api/v1/farms/meadowbrook/vault",
		map[string]string{"recipient": string(farmer)}); code != http.StatusOK {
		t.Fatal("create vault failed")
	}
	if code, _ := a.do(t, minter, http.MethodPost, "/api/v1/donations",
		map[string]string{"farm_id": "meadowbrook", "amount": "50", "donor_ref": "donor-d"}); code != http.StatusOK {
		t.Fatal("donate failed")
	}

	code, body := a.do(t, farmer, http.MethodGet, "/api/v1/ledger", nil)
	if code != http.StatusOK {
		t.Fatalf("ledger overview: got %d", code)
	}
	if body["events"].(float64) != 2 { // genesis + mint
		t.Errorf("event count: got %v, want 2", body["events"])
	}

	code, body = a.do(t, farmer, http.MethodGet, "/api/v1/ledger/verify", nil)
	if code != http.StatusOK || body["valid"] != true {
		t.Errorf("verify: code %d valid %v", code, body["valid"])
	}

	code, body = a.do(t, farmer, http.MethodGet, "/api/v1/ledger/events/1", nil)
	if code != http.StatusOK {
		t.Fatalf("get event: got %d", code)
	}
	if body["kind"] != "minted" || body["ref"] != "donor-d" {
		t.Errorf("event 1: kind=%v ref=%v, want minted/donor-d", body["kind"], body["ref"])
	}

	code, _ = a.do(t, farmer, http.MethodGet, "/api/v1/ledger/events/99", nil)
	if code != http.StatusNotFound {
		t.Errorf("missing event: got %d, want 404", code)
	}

	code, body = a.do(t, farmer, http.MethodGet, fmt.Sprintf("/api/v1/ledger/events?after=%d&limit=%d", -1, 10), nil)
	if code != http.StatusOK {
		t.Fatalf("list events: got %d", code)
	}
	if events, ok := body["events"].([]any); !ok || len(events) != 2 {
		t.Errorf("list events: got %v", body["events"])
	}
}
