package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vouchpay/vouchpay/internal/catalog"
	"github.com/vouchpay/vouchpay/internal/config"
	"github.com/vouchpay/vouchpay/internal/fault"
	"github.com/vouchpay/vouchpay/internal/identity"
	"github.com/vouchpay/vouchpay/internal/ledger"
	"github.com/vouchpay/vouchpay/internal/logging"
)

const testSecret = "routes-test-secret"

type testEnv struct {
	app    *fiber.App
	wiring Wiring
}

func setupApp(t *testing.T) *testEnv {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	wiring, err := Setup(app, Deps{
		Cfg: config.Config{
			AppName:            "vouchpay-test",
			IdentitySecret:     testSecret,
			ServiceFeeBPS:      250,
			VerificationWindow: 5 * 24 * time.Hour,
		},
		Logger: logging.Discard(),
	})
	if err != nil {
		t.Fatalf("setup routes: %v", err)
	}

	mem, ok := wiring.Catalog.(*catalog.MemoryCatalog)
	if !ok {
		t.Fatal("expected in-memory catalog without a database")
	}
	mem.Put(catalog.Product{ID: "prod-1", SellerID: "seller-1", Title: "film camera", Price: 20_000})
	ledger.SeedCredit(wiring.Ledger, "buyer-1", 100_000)

	return &testEnv{app: app, wiring: wiring}
}

// The production error mapping lives in the server package, which cannot be
// imported here without a cycle; mirror it for status assertions.
func testErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}
	return c.Status(fault.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
}

func (e *testEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := identity.SignToken(identity.Principal{UserID: userID, Role: role}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	decoded := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func TestPingIsPublic(t *testing.T) {
	env := setupApp(t)
	resp, body := env.request(t, fiber.MethodGet, "/api/v1/ping", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := setupApp(t)
	resp, _ := env.request(t, fiber.MethodGet, "/api/v1/wallets/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAdminRoutesRejectBuyers(t *testing.T) {
	env := setupApp(t)
	buyer := env.token(t, "buyer-1", identity.RoleBuyer)
	resp, _ := env.request(t, fiber.MethodPost, "/api/v1/wallets/buyer-2/freeze", buyer, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	env := setupApp(t)
	buyer := env.token(t, "buyer-1", identity.RoleBuyer)
	seller := env.token(t, "seller-1", identity.RoleSeller)

	resp, body := env.request(t, fiber.MethodPost, "/api/v1/orders", buyer,
		fiber.Map{"product_id": "prod-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place status = %d, body %v", resp.StatusCode, body)
	}
	orderID, _ := body["id"].(string)
	if orderID == "" {
		t.Fatalf("no order id in %v", body)
	}
	// 20000 + 2.5% fee
	if amt, _ := body["amount"].(float64); int64(amt) != 20_500 {
		t.Fatalf("amount = %v, want 20500", body["amount"])
	}

	for _, step := range []string{"ship", "deliver"} {
		resp, body = env.request(t, fiber.MethodPost,
			fmt.Sprintf("/api/v1/orders/%s/%s", orderID, step), seller, fiber.Map{})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, body %v", step, resp.StatusCode, body)
		}
	}
	if dl, _ := body["verification_deadline"].(string); dl == "" {
		t.Fatal("delivery must expose the verification deadline")
	}

	resp, body = env.request(t, fiber.MethodPost,
		fmt.Sprintf("/api/v1/orders/%s/verify", orderID), buyer,
		fiber.Map{"checklist": []string{"item received intact"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d, body %v", resp.StatusCode, body)
	}
	if body["status"] != "VERIFIED" || body["escrow_status"] != "released" {
		t.Fatalf("order after verify = %v", body)
	}

	resp, body = env.request(t, fiber.MethodGet, "/api/v1/wallets/me", seller, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("wallet status = %d", resp.StatusCode)
	}
	balances, _ := body["balances"].(map[string]any)
	if avail, _ := balances["available"].(float64); int64(avail) != 20_500 {
		t.Fatalf("seller available = %v, want 20500", balances["available"])
	}
}

func TestDisputeResolutionOverHTTP(t *testing.T) {
	env := setupApp(t)
	buyer := env.token(t, "buyer-1", identity.RoleBuyer)
	seller := env.token(t, "seller-1", identity.RoleSeller)
	admin := env.token(t, "admin-1", identity.RoleAdmin)

	_, body := env.request(t, fiber.MethodPost, "/api/v1/orders", buyer,
		fiber.Map{"product_id": "prod-1"})
	orderID, _ := body["id"].(string)

	env.request(t, fiber.MethodPost, fmt.Sprintf("/api/v1/orders/%s/ship", orderID), seller, fiber.Map{})
	env.request(t, fiber.MethodPost, fmt.Sprintf("/api/v1/orders/%s/deliver", orderID), seller, fiber.Map{})

	resp, body := env.request(t, fiber.MethodPost,
		fmt.Sprintf("/api/v1/orders/%s/dispute", orderID), buyer,
		fiber.Map{"reason": "shutter jammed", "photos": []string{"jam.jpg"}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("dispute status = %d, body %v", resp.StatusCode, body)
	}
	disputeBody, _ := body["dispute"].(map[string]any)
	disputeID, _ := disputeBody["id"].(string)
	if disputeID == "" {
		t.Fatalf("no dispute id in %v", body)
	}

	resp, _ = env.request(t, fiber.MethodPost,
		fmt.Sprintf("/api/v1/disputes/%s/resolve", disputeID), buyer,
		fiber.Map{"decision": "buyer"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("buyer resolve status = %d, want 403", resp.StatusCode)
	}

	resp, body = env.request(t, fiber.MethodPost,
		fmt.Sprintf("/api/v1/disputes/%s/resolve", disputeID), admin,
		fiber.Map{"decision": "buyer"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin resolve status = %d, body %v", resp.StatusCode, body)
	}
	if body["status"] != "REFUNDED" {
		t.Fatalf("order after ruling = %v", body)
	}

	_, body = env.request(t, fiber.MethodGet, "/api/v1/wallets/me", buyer, nil)
	balances, _ := body["balances"].(map[string]any)
	if avail, _ := balances["available"].(float64); int64(avail) != 100_000 {
		t.Fatalf("buyer available = %v, want full refund", balances["available"])
	}
}
