package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/punchamoorthee/payledger/internal/alert"
	"github.com/punchamoorthee/payledger/internal/api"
	"github.com/punchamoorthee/payledger/internal/directory"
	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/punchamoorthee/payledger/internal/service"
	"github.com/punchamoorthee/payledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const adminToken = "test-admin-token"

type testEnv struct {
	mem    *store.Memory
	ledger *service.Ledger
	subs   *service.SubscriptionService
	server *httptest.Server
	client *http.Client
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	mem := store.NewMemory()
	methods := directory.NewStatic(domain.PaymentMethod{
		CountryID: 1, MethodTypeID: 1, Name: "Bank Transfer", IsActive: true, UserInstructions: "wire it",
	})
	ledger := service.NewLedger(mem)
	subs := service.NewSubscriptionService(mem)
	h := api.NewHandler(api.Services{
		Ledger:        ledger,
		Transactions:  service.NewTransactionService(mem, methods, service.NewDispatcher(ledger, subs), alert.Nop{}, log),
		Withdrawals:   service.NewWithdrawalService(mem, ledger, log),
		Gifts:         service.NewGiftService(mem, ledger, subs, methods, "USD", log),
		Subscriptions: subs,
	}, adminToken, log)

	ts := httptest.NewServer(h.Router())
	t.Cleanup(ts.Close)
	return &testEnv{
		mem:    mem,
		ledger: ledger,
		subs:   subs,
		server: ts,
		client: &http.Client{Timeout: 3 * time.Second},
	}
}

func (e *testEnv) doRequest(t *testing.T, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func asUser(id int64) map[string]string {
	return map[string]string{"X-User-ID": fmt.Sprint(id)}
}

func asAdmin() map[string]string {
	return map[string]string{"Authorization": "Bearer " + adminToken, "X-Admin-ID": "99"}
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func (e *testEnv) fund(t *testing.T, userID int64, amount string) {
	t.Helper()
	err := e.mem.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := e.ledger.Credit(ctx, tx, service.Movement{
			UserID: userID, Amount: decimal.RequireFromString(amount), Reason: domain.ReasonDeposit, ReferenceType: "test",
		})
		return err
	})
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func (e *testEnv) balance(t *testing.T, userID int64) string {
	t.Helper()
	resp := e.doRequest(t, http.MethodGet, "/api/v1/balance", "", asUser(userID))
	expectStatus(t, resp, http.StatusOK)
	var acc domain.BalanceAccount
	decodeBody(t, resp, &acc)
	return acc.Balance.StringFixed(2)
}

func TestDepositFlowOverHTTP(t *testing.T) {
	env := setupTest(t)

	resp := env.doRequest(t, http.MethodPost, "/api/v1/payments",
		`{"amount":"25.50","currency":"USD","item_category":"deposit","payment_country_id":1,"payment_method_type_id":1}`, asUser(1))
	expectStatus(t, resp, http.StatusCreated)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
	var created struct {
		Transaction  domain.Transaction `json:"transaction"`
		Instructions string             `json:"instructions"`
	}
	decodeBody(t, resp, &created)
	if created.Transaction.Status != domain.TxPendingPayment || created.Instructions != "wire it" {
		t.Fatalf("unexpected response %+v", created)
	}
	id := created.Transaction.ID

	resp = env.doRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/payments/%d/verify", id), `{"status":"completed"}`, asAdmin())
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = env.doRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/payments/%d/reference", id), `{"reference":"BANK-1"}`, asUser(2))
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = env.doRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/payments/%d/reference", id), `{"reference":"BANK-1"}`, asUser(1))
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.doRequest(t, http.MethodGet, "/api/v1/admin/payments/pending", "", asAdmin())
	expectStatus(t, resp, http.StatusOK)
	var queue []domain.Transaction
	decodeBody(t, resp, &queue)
	if len(queue) != 1 || queue[0].ID != id {
		t.Fatalf("expected transaction %d queued, got %+v", id, queue)
	}

	resp = env.doRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/payments/%d/verify", id), `{"status":"completed","notes":"seen"}`, asAdmin())
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	if got := env.balance(t, 1); got != "25.50" {
		t.Fatalf("expected balance 25.50, got %s", got)
	}

	resp = env.doRequest(t, http.MethodGet, "/api/v1/balance/entries", "", asUser(1))
	expectStatus(t, resp, http.StatusOK)
	var entries []domain.LedgerEntry
	decodeBody(t, resp, &entries)
	if len(entries) != 1 || entries[0].Reason != domain.ReasonDeposit || entries[0].ReferenceID != id {
		t.Fatalf("unexpected journal %+v", entries)
	}
}

func TestPaymentValidation(t *testing.T) {
	env := setupTest(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"amount":`, http.StatusBadRequest},
		{"unknown category", `{"amount":"1","currency":"USD","item_category":"donation","payment_country_id":1,"payment_method_type_id":1}`, http.StatusBadRequest},
		{"missing method", `{"amount":"1","currency":"USD","item_category":"deposit"}`, http.StatusBadRequest},
		{"negative amount", `{"amount":"-1","currency":"USD","item_category":"deposit","payment_country_id":1,"payment_method_type_id":1}`, http.StatusUnprocessableEntity},
		{"unconfigured method", `{"amount":"1","currency":"USD","item_category":"deposit","payment_country_id":5,"payment_method_type_id":5}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		resp := env.doRequest(t, http.MethodPost, "/api/v1/payments", tc.body, asUser(1))
		if resp.StatusCode != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestAuthRequired(t *testing.T) {
	env := setupTest(t)

	resp := env.doRequest(t, http.MethodGet, "/api/v1/balance", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = env.doRequest(t, http.MethodGet, "/api/v1/admin/payments/pending", "", map[string]string{"Authorization": "Bearer wrong", "X-Admin-ID": "1"})
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = env.doRequest(t, http.MethodGet, "/api/v1/admin/payments/pending", "", map[string]string{"Authorization": "Bearer " + adminToken})
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestWithdrawalOverHTTP(t *testing.T) {
	env := setupTest(t)
	env.fund(t, 1, "100")

	body := `{"amount":"50","payment_details":"IBAN XX00"}`
	resp := env.doRequest(t, http.MethodPost, "/api/v1/withdrawals", body, asUser(1))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	headers := asUser(1)
	headers["Idempotency-Key"] = "wd-1"
	resp = env.doRequest(t, http.MethodPost, "/api/v1/withdrawals", body, headers)
	expectStatus(t, resp, http.StatusCreated)
	var w domain.WithdrawalRequest
	decodeBody(t, resp, &w)
	if w.Status != domain.WithdrawalPending {
		t.Fatalf("expected pending, got %s", w.Status)
	}

	resp = env.doRequest(t, http.MethodPost, "/api/v1/withdrawals", body, headers)
	expectStatus(t, resp, http.StatusOK)
	var replay domain.WithdrawalRequest
	decodeBody(t, resp, &replay)
	if replay.ID != w.ID {
		t.Fatalf("expected replay of %d, got %d", w.ID, replay.ID)
	}

	resp = env.doRequest(t, http.MethodPost, "/api/v1/withdrawals", `{"amount":"10","payment_details":"IBAN XX00"}`, headers)
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()

	if got := env.balance(t, 1); got != "50.00" {
		t.Fatalf("expected balance 50.00, got %s", got)
	}

	resp = env.doRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%d/status", w.ID), `{"status":"rejected","notes":"bad iban"}`, asAdmin())
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	if got := env.balance(t, 1); got != "100.00" {
		t.Fatalf("expected balance 100.00, got %s", got)
	}

	resp = env.doRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%d/status", w.ID), `{"status":"processed"}`, asAdmin())
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = env.doRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/withdrawals/%d", w.ID), "", asUser(2))
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestGiftOverHTTP(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	premium := env.mem.AddPackage(domain.SubscriptionPackage{Name: "Premium", TierLevel: domain.TierPremium, Price: decimal.NewFromInt(10)})
	err := env.mem.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := env.subs.Activate(ctx, tx, service.Activation{UserID: 2, PackageID: premium.ID, PaymentMethodName: "test", Amount: premium.Price})
		return err
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	env.fund(t, 1, "30")
	rose := env.mem.AddGiftItem(domain.GiftItem{Name: "Rose", Price: decimal.NewFromInt(20), IsActive: true})

	resp := env.doRequest(t, http.MethodPost, "/api/v1/gifts",
		fmt.Sprintf(`{"recipient_id":2,"gift_item_id":%d,"use_site_balance":true,"message":"hey"}`, rose.ID), asUser(1))
	expectStatus(t, resp, http.StatusCreated)
	var sent struct {
		Gift domain.UserGift `json:"gift"`
	}
	decodeBody(t, resp, &sent)

	resp = env.doRequest(t, http.MethodGet, "/api/v1/subscription", "", asUser(2))
	expectStatus(t, resp, http.StatusOK)
	var sub domain.UserSubscription
	decodeBody(t, resp, &sub)
	if sub.TierLevel != domain.TierPremium {
		t.Fatalf("expected premium subscription, got %s", sub.TierLevel)
	}

	resp = env.doRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/gifts/%d/redeem", sent.Gift.ID), "", asUser(2))
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	if got := env.balance(t, 2); got != "14.60" {
		t.Fatalf("expected balance 14.60, got %s", got)
	}

	resp = env.doRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/gifts/%d/redeem", sent.Gift.ID), "", asUser(2))
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = env.doRequest(t, http.MethodGet, "/api/v1/subscription", "", asUser(1))
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestHealth(t *testing.T) {
	env := setupTest(t)
	resp := env.doRequest(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}
