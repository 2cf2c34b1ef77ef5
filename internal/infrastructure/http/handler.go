package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	playvalidator "github.com/go-playground/validator/v10"

	"walletcore.com/internal/application/usecase"
	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
	"walletcore.com/internal/infrastructure/logger"
)

const (
	HeaderIdempotencyKey   = "Idempotency-Key"
	HeaderIdempotentReplay = "Idempotent-Replayed"
	maxHistoryQueryLimit   = 1000
	authorizationBodyLimit = 64 << 10
)

// Handler holds HTTP handlers and their dependencies
type Handler struct {
	funds     *usecase.FundsTransferUseCase
	authorize *usecase.AuthorizeCardUseCase
	wallet    *usecase.GetWalletUseCase
	history   *usecase.GetHistoryUseCase
	verifier  port.WebhookValidator
	metrics   http.Handler
	observer  RequestObserver
	timeout   time.Duration
	validate  *playvalidator.Validate
	logger    logger.Logger
}

// HandlerDeps groups what NewHandler needs. Verifier, Metrics and Observer
// are optional: a nil Verifier accepts unsigned authorization webhooks.
type HandlerDeps struct {
	Funds          *usecase.FundsTransferUseCase
	Authorize      *usecase.AuthorizeCardUseCase
	Wallet         *usecase.GetWalletUseCase
	History        *usecase.GetHistoryUseCase
	Verifier       port.WebhookValidator
	Metrics        http.Handler
	Observer       RequestObserver
	RequestTimeout time.Duration
	Logger         logger.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		funds:     deps.Funds,
		authorize: deps.Authorize,
		wallet:    deps.Wallet,
		history:   deps.History,
		verifier:  deps.Verifier,
		metrics:   deps.Metrics,
		observer:  deps.Observer,
		timeout:   deps.RequestTimeout,
		validate:  newRequestValidator(),
		logger:    deps.Logger,
	}
}

// Routes builds the router with the middleware chain applied.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		RequestIDMiddleware(h.logger),
		LoggingMiddleware(h.logger, h.observer),
		TimeoutMiddleware(h.timeout),
	)

	r.Get("/healthz", h.HandleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/transfers", h.HandleTransfer)
		r.Post("/payments", h.HandlePayment)
		r.Get("/payments/history/{user}", h.HandleHistory)
		r.Post("/topups", h.HandleTopup)
		r.Get("/wallets/{user}", h.HandleWallet)
		r.Post("/webhook/authorize", h.HandleAuthorize)
	})
	return r
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleTransfer handles POST /api/transfers requests
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	var body transferRequest
	if !h.bind(w, r, &body) {
		return
	}
	res, err := h.funds.Transfer(r.Context(), usecase.TransferRequest{
		FromUserID: body.FromUserID,
		ToUserID:   body.ToUserID,
		Currency:   body.Currency,
		Amount:     body.Amount,
	})
	if err != nil {
		h.fail(w, r, "Transfer failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newTransferResponse(res))
}

// HandlePayment handles POST /api/payments requests
func (h *Handler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	var body paymentRequest
	if !h.bind(w, r, &body) {
		return
	}
	res, err := h.funds.Payment(r.Context(), usecase.PaymentRequest{
		FromUserID:  body.FromUserID,
		ToUserID:    body.ToUserID,
		Currency:    body.Currency,
		Amount:      body.Amount,
		Description: body.Description,
	})
	if err != nil {
		h.fail(w, r, "Payment failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, newPaymentResponse(res))
}

// HandleTopup handles POST /api/topups requests
func (h *Handler) HandleTopup(w http.ResponseWriter, r *http.Request) {
	var body topupRequest
	if !h.bind(w, r, &body) {
		return
	}
	res, err := h.funds.Topup(r.Context(), usecase.TopupRequest{
		UserID:   body.UserID,
		Currency: body.Currency,
		Amount:   body.Amount,
	})
	if err != nil {
		h.fail(w, r, "Topup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newTopupResponse(res))
}

// HandleWallet handles GET /api/wallets/{user} requests
func (h *Handler) HandleWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.wallet.Execute(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		h.fail(w, r, "Failed to get wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// HandleHistory handles GET /api/payments/history/{user}?limit=N requests
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryQueryLimit {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxHistoryQueryLimit))
			return
		}
		limit = n
	}

	entries, err := h.history.Execute(r.Context(), chi.URLParam(r, "user"), limit)
	if err != nil {
		h.fail(w, r, "Failed to get history", err)
		return
	}
	writeJSON(w, http.StatusOK, newHistory(entries))
}

// HandleAuthorize handles POST /api/webhook/authorize requests. The decision
// is written exactly as it was recorded, so a replay is byte-identical.
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestLogger := LoggerFromContext(ctx, h.logger)

	body, err := io.ReadAll(io.LimitReader(r.Body, authorizationBodyLimit))
	if err != nil {
		requestLogger.LogError(ctx, "Failed to read request body", err)
		writeErr(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if h.verifier != nil {
		if err := h.verifier.ValidateRequest(ctx, r.Header, body); err != nil {
			requestLogger.LogWarning(ctx, "Webhook validation failed", "error", err.Error())
			writeErr(w, http.StatusUnauthorized, publicErrMessage(http.StatusUnauthorized, err))
			return
		}
	}

	var req entity.AuthorizationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.fail(w, r, "Invalid authorization body", fmt.Errorf("%w: %v", errMalformedBody, err))
		return
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		req.IdempotencyKey = strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	}

	res, err := h.authorize.Execute(ctx, &req)
	if err != nil {
		h.fail(w, r, "Authorization failed", err)
		return
	}

	w.Header().Set(HeaderIdempotentReplay, strconv.FormatBool(res.Replayed))
	writeRaw(w, http.StatusOK, res.Payload)
}

// bind decodes and validates a JSON body, answering 400 itself on failure.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := decodeJSON(r, dst)
	if err == nil {
		err = h.validate.Struct(dst)
	}
	if err != nil {
		h.fail(w, r, "Invalid request", err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	code := httpStatusForErr(err)
	requestLogger := LoggerFromContext(r.Context(), h.logger)
	if code >= http.StatusInternalServerError {
		requestLogger.LogError(r.Context(), msg, err, "status", code)
	} else {
		requestLogger.LogInfo(r.Context(), msg, "status", code, "reason", err.Error())
	}

	var insufficient *entity.InsufficientFundsError
	if errors.As(err, &insufficient) {
		writeJSON(w, code, map[string]any{
			"error":           publicErrMessage(code, err),
			"available_minor": insufficient.Available,
		})
		return
	}
	writeErr(w, code, publicErrMessage(code, err))
}
