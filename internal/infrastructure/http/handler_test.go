package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore.com/internal/application/usecase"
	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/infrastructure/logger"
	"walletcore.com/internal/infrastructure/metrics"
	"walletcore.com/internal/infrastructure/repository"
	webhookauth "walletcore.com/internal/infrastructure/validator"
)

const (
	testPAN    = "545454******5454"
	testSecret = "handler-test-secret"
)

type testServer struct {
	store  *repository.InMemoryStore
	routes http.Handler
}

func newTestServer(t *testing.T, verifier *webhookauth.HMACValidator) *testServer {
	t.Helper()
	ctx := context.Background()
	log := logger.Discard()

	store := repository.NewInMemoryStore(log, time.Second)
	for _, user := range []string{"alice", "bob"} {
		require.NoError(t, store.Provision(ctx, user))
	}
	cards := repository.NewInMemoryCardRegistry()
	require.NoError(t, cards.Register(ctx, entity.Card{MaskedPAN: testPAN, UserID: "alice", Type: "virtual", Status: entity.CardActive}))

	recorder := metrics.NewRecorder()
	deps := HandlerDeps{
		Funds: usecase.NewFundsTransferUseCase(store, recorder, log),
		Authorize: usecase.NewAuthorizeCardUseCase(usecase.AuthorizeCardDeps{
			Store:   store,
			Cards:   cards,
			Metrics: recorder,
			Logger:  log,
		}),
		Wallet:         usecase.NewGetWalletUseCase(store),
		History:        usecase.NewGetHistoryUseCase(store),
		Metrics:        recorder.Handler(),
		Observer:       recorder,
		RequestTimeout: 5 * time.Second,
		Logger:         log,
	}
	if verifier != nil {
		deps.Verifier = verifier
	}
	return &testServer{store: store, routes: NewHandler(deps).Routes()}
}

func (s *testServer) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	s.routes.ServeHTTP(w, req)
	return w
}

func (s *testServer) topup(t *testing.T, user, currency, amount string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/topups",
		fmt.Sprintf(`{"user_id":%q,"currency":%q,"amount":%q}`, user, currency, amount), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHandler_Topup(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/topups", `{"user_id":"alice","currency":"USD","amount":"100.005"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(10001), body["balance_minor"])
	assert.Equal(t, "100.01", body["balance_decimal"])
	assert.Equal(t, "USD", body["currency"])
	assert.NotEmpty(t, body["transaction_id"])
}

func TestHandler_Transfer(t *testing.T) {
	s := newTestServer(t, nil)
	s.topup(t, "alice", "USD", "100.00")

	w := s.do(t, http.MethodPost, "/api/transfers", `{"from_user_id":"alice","to_user_id":"bob","currency":"USD","amount":25.50}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, float64(7450), body["from_new_balance"])
	assert.Equal(t, float64(2550), body["to_new_balance"])
	assert.NotEmpty(t, body["tx_id"])
}

func TestHandler_TransferRejections(t *testing.T) {
	s := newTestServer(t, nil)
	s.topup(t, "alice", "USD", "10.00")

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "insufficient funds",
			body:       `{"from_user_id":"alice","to_user_id":"bob","currency":"USD","amount":"10.01"}`,
			wantStatus: http.StatusPaymentRequired,
			wantError:  "insufficient_funds",
		},
		{
			name:       "missing destination",
			body:       `{"from_user_id":"alice","currency":"USD","amount":"1.00"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "to_user_id failed on required",
		},
		{
			name:       "unsupported currency",
			body:       `{"from_user_id":"alice","to_user_id":"bob","currency":"EUR","amount":"1.00"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "zero amount",
			body:       `{"from_user_id":"alice","to_user_id":"bob","currency":"USD","amount":"0.004"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			body:       `{"from_user_id":"alice","to_user_id":"bob","currency":"USD","amount":"1","memo":"x"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid JSON body",
			body:       `invalid json`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown destination",
			body:       `{"from_user_id":"alice","to_user_id":"carol","currency":"USD","amount":"1.00"}`,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/transfers", tt.body, nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeBody(t, w)["error"])
			}
		})
	}

	// Nothing moved.
	w := s.do(t, http.MethodGet, "/api/wallets/alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance_minor":1000`)
}

func TestHandler_AmountBounds(t *testing.T) {
	s := newTestServer(t, nil)

	for _, amount := range []string{"1e10000000", "1e-10000000"} {
		start := time.Now()
		w := s.do(t, http.MethodPost, "/api/topups",
			fmt.Sprintf(`{"user_id":"alice","currency":"USD","amount":%q}`, amount), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Less(t, w.Body.Len(), 200, "amount %s echoed into the body", amount)
		assert.Less(t, time.Since(start), time.Second)
	}

	start := time.Now()
	w := s.do(t, http.MethodPost, "/api/webhook/authorize", authorizationBody("huge-amount", "1e10000000"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp entity.AuthorizationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, entity.ActionDoNotHonor, resp.ActionCode)
	assert.Less(t, time.Since(start), time.Second)

	s.topup(t, "alice", "USD", "92233720368547758.07")
	w = s.do(t, http.MethodPost, "/api/topups", `{"user_id":"alice","currency":"USD","amount":"0.01"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, decodeBody(t, w)["error"], entity.ErrInvalidAmount.Error())
}

func TestHandler_InsufficientFundsReportsAvailable(t *testing.T) {
	s := newTestServer(t, nil)
	s.topup(t, "alice", "USD", "3.00")

	w := s.do(t, http.MethodPost, "/api/payments", `{"from_user_id":"alice","currency":"USD","amount":"5.00"}`, nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, float64(300), decodeBody(t, w)["available_minor"])
}

func TestHandler_Payment(t *testing.T) {
	s := newTestServer(t, nil)
	s.topup(t, "alice", "LBP", "500.00")

	w := s.do(t, http.MethodPost, "/api/payments",
		`{"from_user_id":"alice","to_user_id":"bob","currency":"LBP","amount":"120.25","description":"rent"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, float64(37975), body["new_balance_minor"])
	assert.Equal(t, "379.75", body["new_balance_decimal"])

	// A payment without a destination leaves the ledger.
	w = s.do(t, http.MethodPost, "/api/payments", `{"from_user_id":"alice","currency":"LBP","amount":"79.75"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "300.00", decodeBody(t, w)["new_balance_decimal"])
}

func TestHandler_Wallet(t *testing.T) {
	s := newTestServer(t, nil)
	s.topup(t, "bob", "USD", "12.34")

	w := s.do(t, http.MethodGet, "/api/wallets/bob", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var wallet entity.WalletResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wallet))
	assert.Equal(t, "bob", wallet.User)
	require.Len(t, wallet.Balances, 2)

	byCurrency := map[entity.Currency]entity.WalletBalance{}
	for _, b := range wallet.Balances {
		byCurrency[b.Currency] = b
	}
	assert.Equal(t, int64(1234), byCurrency[entity.USD].BalanceMinor)
	assert.Equal(t, "12.34", byCurrency[entity.USD].BalanceDecimal)
	assert.Equal(t, "0.00", byCurrency[entity.LBP].BalanceDecimal)
}

func TestHandler_History(t *testing.T) {
	s := newTestServer(t, nil)
	s.topup(t, "alice", "USD", "50.00")
	w := s.do(t, http.MethodPost, "/api/transfers", `{"from_user_id":"alice","to_user_id":"bob","currency":"USD","amount":"20"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/payments/history/alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "p2p", entries[0]["type"])
	assert.Equal(t, "20.00", entries[0]["amount"])
	assert.Equal(t, "bob", entries[0]["to_user_id"])
	assert.Equal(t, "topup", entries[1]["type"])
	assert.Nil(t, entries[1]["from_user_id"])

	w = s.do(t, http.MethodGet, "/api/payments/history/alice?limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)

	for _, bad := range []string{"0", "-3", "abc", "1001"} {
		w = s.do(t, http.MethodGet, "/api/payments/history/alice?limit="+bad, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", bad)
	}
}

func authorizationBody(key, amount string) string {
	return fmt.Sprintf(`{
		"messageType":"2100",
		"processingCode":"000000",
		"primaryAccountNumber":%q,
		"amountTransaction":%q,
		"amountCardholderBilling":%q,
		"currencyCode":"840",
		"retrievalReferenceNumber":"000000000042",
		"cardAcceptorName":"CORNER SHOP",
		"idempotency_key":%q
	}`, testPAN, amount, amount, key)
}

func TestHandler_AuthorizeApprovesAndReplays(t *testing.T) {
	s := newTestServer(t, nil)
	s.topup(t, "alice", "USD", "200.00")

	first := s.do(t, http.MethodPost, "/api/webhook/authorize", authorizationBody("auth-1", "10.00"), nil)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "false", first.Header().Get(HeaderIdempotentReplay))

	var resp entity.AuthorizationResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &resp))
	assert.Equal(t, entity.ActionApproved, resp.ActionCode)
	assert.Equal(t, "2110", resp.MessageType)
	assert.Len(t, resp.ApprovalCode, 6)
	assert.Equal(t, "000000019000", resp.AdditionalAmounts[0].Value)

	second := s.do(t, http.MethodPost, "/api/webhook/authorize", authorizationBody("auth-1", "10.00"), nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(HeaderIdempotentReplay))
	assert.True(t, bytes.Equal(first.Body.Bytes(), second.Body.Bytes()), "replay must be byte-identical")

	w := s.do(t, http.MethodGet, "/api/wallets/alice", "", nil)
	assert.Contains(t, w.Body.String(), `"balance_minor":19000`)
}

func TestHandler_AuthorizeDeclineIsOK(t *testing.T) {
	s := newTestServer(t, nil)
	s.topup(t, "alice", "USD", "5.00")

	w := s.do(t, http.MethodPost, "/api/webhook/authorize", authorizationBody("auth-decline", "10.00"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp entity.AuthorizationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, entity.ActionInsufficientFunds, resp.ActionCode)
	assert.Equal(t, entity.NoApprovalCode, resp.ApprovalCode)
	assert.Equal(t, "000000000500", resp.AdditionalAmounts[0].Value)
}

func TestHandler_AuthorizeIdempotencyKey(t *testing.T) {
	s := newTestServer(t, nil)
	s.topup(t, "alice", "USD", "50.00")

	body := authorizationBody("", "1.00")

	w := s.do(t, http.MethodPost, "/api/webhook/authorize", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, entity.ErrMissingIdempotencyKey.Error(), decodeBody(t, w)["error"])

	header := http.Header{}
	header.Set(HeaderIdempotencyKey, "from-header")
	w = s.do(t, http.MethodPost, "/api/webhook/authorize", body, header)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/webhook/authorize", authorizationBody("from-header", "1.00"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(HeaderIdempotentReplay))

	w = s.do(t, http.MethodPost, "/api/webhook/authorize", `{"idempotency_key":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_AuthorizeRequiresSignature(t *testing.T) {
	verifier := webhookauth.NewHMACValidator(testSecret, 5*time.Minute, logger.Discard())
	s := newTestServer(t, verifier)
	s.topup(t, "alice", "USD", "50.00")

	body := authorizationBody("signed-1", "2.00")

	w := s.do(t, http.MethodPost, "/api/webhook/authorize", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeBody(t, w)["error"])

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	header := http.Header{}
	header.Set(webhookauth.HeaderTimestamp, ts)
	header.Set(webhookauth.HeaderNonce, "nonce-1")
	header.Set(webhookauth.HeaderSignature, webhookauth.Sign([]byte(testSecret), ts, "nonce-1", []byte(body)))

	w = s.do(t, http.MethodPost, "/api/webhook/authorize", body, header)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The same signed request sent again is a captured replay.
	w = s.do(t, http.MethodPost, "/api/webhook/authorize", body, header)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_HealthMetricsAndRequestID(t *testing.T) {
	s := newTestServer(t, nil)
	s.topup(t, "alice", "USD", "1.00")

	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	header := http.Header{}
	header.Set(HeaderRequestID, "req-123")
	w = s.do(t, http.MethodGet, "/healthz", "", header)
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ledger_movements_total{kind="topup",outcome="completed"} 1`)
	assert.Contains(t, w.Body.String(), `route="/api/topups"`)
}

func TestHandler_UnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/balance/alice", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/random-"+strconv.Itoa(42), "", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, s.do(t, http.MethodGet, "/api/transfers", "", nil).Code)

	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `route="unmatched",status="404"`)
	assert.NotContains(t, body, "/balance/alice")
	assert.NotContains(t, body, "/random-42")
}

func TestHTTPStatusForErr(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantPublic string
	}{
		{"validation", entity.ErrInvalidAmount, http.StatusBadRequest, entity.ErrInvalidAmount.Error()},
		{"not found", fmt.Errorf("lock: %w", entity.ErrNotFound), http.StatusNotFound, "lock: balance not found"},
		{"insufficient", &entity.InsufficientFundsError{Available: 1, Requested: 2}, http.StatusPaymentRequired, "insufficient_funds"},
		{"lock timeout", entity.ErrLockTimeout, http.StatusServiceUnavailable, "service temporarily unavailable, retry"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "internal error"},
		{"unauthenticated", webhookauth.ErrInvalidSignature, http.StatusUnauthorized, "unauthorized"},
		{"internal", errors.New("pq: connection reset by peer"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := httpStatusForErr(tt.err)
			assert.Equal(t, tt.wantStatus, code)
			assert.Equal(t, tt.wantPublic, publicErrMessage(code, tt.err))
		})
	}
}
