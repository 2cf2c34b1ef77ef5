package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
	"walletcore.com/internal/infrastructure/logger"
)

// AuthorizeCardUseCase decides card authorizations against wallet balances.
// Each decision, approve or decline, is recorded once per idempotency key and
// every later request with that key gets the recorded bytes back.
type AuthorizeCardUseCase struct {
	store        port.LedgerStore
	cards        port.CardRegistry
	cache        port.ResponseCache
	metrics      port.MetricsRecorder
	logger       logger.Logger
	amountSource entity.AmountSource
}

// AuthorizeCardDeps groups the collaborators of AuthorizeCardUseCase.
// Cache and Metrics are optional.
type AuthorizeCardDeps struct {
	Store        port.LedgerStore
	Cards        port.CardRegistry
	Cache        port.ResponseCache
	Metrics      port.MetricsRecorder
	Logger       logger.Logger
	AmountSource entity.AmountSource
}

// NewAuthorizeCardUseCase creates a new AuthorizeCardUseCase
func NewAuthorizeCardUseCase(deps AuthorizeCardDeps) *AuthorizeCardUseCase {
	uc := &AuthorizeCardUseCase{
		store:        deps.Store,
		cards:        deps.Cards,
		cache:        deps.Cache,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		amountSource: deps.AmountSource,
	}
	if uc.metrics == nil {
		uc.metrics = port.NopMetrics{}
	}
	if uc.amountSource == "" {
		uc.amountSource = entity.AmountFromTransaction
	}
	return uc
}

// AuthorizationResult is a decision plus its canonical encoding. Payload is
// what goes on the wire; replays return it byte for byte.
type AuthorizationResult struct {
	Response *entity.AuthorizationResponse
	Payload  []byte
	Replayed bool
}

// Execute authorizes req. Errors are returned only when no decision could be
// recorded (validation or store failure); declines are results, not errors.
func (uc *AuthorizeCardUseCase) Execute(ctx context.Context, req *entity.AuthorizationRequest) (*AuthorizationResult, error) {
	start := time.Now()
	if req == nil {
		return nil, entity.ErrMissingIdempotencyKey
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := uc.logger.With(
		"idempotency_key", req.IdempotencyKey,
		"pan_masked", req.PrimaryAccountNumber,
		"rrn", req.RetrievalReferenceNumber,
	)

	if res := uc.cached(ctx, log, req.IdempotencyKey); res != nil {
		uc.observe(res, start)
		return res, nil
	}

	requestPayload, err := canonicalJSON(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	// The registry may share the store's connection pool, so the card is
	// resolved before a unit of work holds a connection.
	card := uc.lookupCard(ctx, req.PrimaryAccountNumber)

	res, err := uc.decideOnce(ctx, log, req, requestPayload, card)
	if errors.Is(err, entity.ErrIdempotencyKeyExists) {
		// Another unit of work recorded this key first; read its decision.
		log.LogDebug(ctx, "Idempotency key recorded concurrently, replaying")
		res, err = uc.decideOnce(ctx, log, req, requestPayload, card)
	}
	if err != nil {
		log.LogError(ctx, "Authorization failed", err)
		return nil, err
	}

	if !res.Replayed && uc.cache != nil {
		if err := uc.cache.Set(ctx, req.IdempotencyKey, res.Payload); err != nil {
			log.LogWarning(ctx, "Response cache write failed", "error", err.Error())
		}
	}

	uc.observe(res, start)
	log.LogInfo(ctx, "Authorization decided",
		"action_code", string(res.Response.ActionCode),
		"approval_code", res.Response.ApprovalCode,
		"replayed", res.Replayed,
	)
	return res, nil
}

// decideOnce runs the whole decision in one unit of work: the idempotency key
// is locked first, so at most one decision per key ever commits.
func (uc *AuthorizeCardUseCase) decideOnce(ctx context.Context, log logger.Logger, req *entity.AuthorizationRequest, requestPayload []byte, card cardLookup) (*AuthorizationResult, error) {
	var res *AuthorizationResult
	err := uc.store.WithinUnitOfWork(ctx, func(ctx context.Context, uow port.UnitOfWork) error {
		if err := uow.LockIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
			return err
		}

		record, err := uow.FindIdempotencyRecord(ctx, req.IdempotencyKey)
		if err != nil {
			return err
		}
		if record != nil {
			if !bytes.Equal(record.RequestPayload, requestPayload) {
				log.LogWarning(ctx, "Idempotency key reused with a different request")
			}
			res, err = replay(record.ResponsePayload)
			return err
		}

		resp, err := uc.decide(ctx, log, uow, req, card)
		if err != nil {
			return err
		}
		payload, err := canonicalJSON(resp)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		if err := uow.SaveIdempotencyRecord(ctx, &entity.IdempotencyRecord{
			Key:             req.IdempotencyKey,
			RequestPayload:  requestPayload,
			ResponsePayload: payload,
			CreatedAt:       time.Now().UTC(),
		}); err != nil {
			return err
		}
		res = &AuthorizationResult{Response: resp, Payload: payload}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// cardLookup is the registry's answer for one PAN, taken outside any unit
// of work. A failed lookup only matters when no decision is recorded yet.
type cardLookup struct {
	card *entity.Card
	err  error
}

func (uc *AuthorizeCardUseCase) lookupCard(ctx context.Context, maskedPAN string) cardLookup {
	card, err := uc.cards.LookupByMaskedPAN(ctx, maskedPAN)
	if err != nil && !errors.Is(err, entity.ErrCardNotFound) && !entity.IsRetryable(err) && ctx.Err() == nil {
		err = fmt.Errorf("%w: card lookup: %w", entity.ErrStoreUnavailable, err)
	}
	return cardLookup{card: card, err: err}
}

// decide evaluates the decline rules in order and debits on approval.
func (uc *AuthorizeCardUseCase) decide(ctx context.Context, log logger.Logger, uow port.UnitOfWork, req *entity.AuthorizationRequest, lookup cardLookup) (*entity.AuthorizationResponse, error) {
	decline := func(code entity.ActionCode, balance int64, reason string) *entity.AuthorizationResponse {
		log.LogInfo(ctx, "Authorization declined", "action_code", string(code), "reason", reason)
		return entity.NewAuthorizationResponse(req, code, entity.NoApprovalCode, balance)
	}

	if errors.Is(lookup.err, entity.ErrCardNotFound) {
		return decline(entity.ActionDoNotHonor, 0, "card not found"), nil
	}
	if lookup.err != nil {
		return nil, lookup.err
	}
	card := lookup.card
	if !card.IsActive() {
		return decline(entity.ActionCardRestricted, 0, "card "+string(card.Status)), nil
	}
	if req.Ecom != nil && !req.Ecom.Frictionless() {
		return decline(entity.ActionDoNotHonor, 0, "ecommerce checks failed"), nil
	}

	currency, err := entity.CurrencyFromNumeric(req.NumericCurrencyCode())
	if err != nil {
		return decline(entity.ActionDoNotHonor, 0, err.Error()), nil
	}
	amount, err := entity.ParseMinorUnits(req.Amount(uc.amountSource), currency)
	if err != nil {
		return decline(entity.ActionDoNotHonor, 0, err.Error()), nil
	}

	key := entity.BalanceKey{UserID: card.UserID, Currency: currency}
	moved, err := postMovement(ctx, uow, movement{
		source:   &key,
		currency: currency,
		amount:   amount,
		details: entity.CardPaymentDetails{
			TxnRef:                   req.TxnRef,
			RetrievalReferenceNumber: req.RetrievalReferenceNumber,
			SystemsTraceAuditNumber:  req.SystemsTraceAuditNumber,
			MerchantName:             req.CardAcceptorName,
			MerchantCategoryCode:     req.MerchantCategoryCode,
		},
	})

	var insufficient *entity.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		return decline(entity.ActionInsufficientFunds, insufficient.Available, "insufficient funds"), nil
	case errors.Is(err, entity.ErrNotFound):
		return decline(entity.ActionDoNotHonor, 0, "no "+string(currency)+" balance"), nil
	case err != nil:
		return nil, err
	}

	approval := entity.ApprovalCodeFor(moved.transaction.ID.String())
	return entity.NewAuthorizationResponse(req, entity.ActionApproved, approval, moved.source.Amount), nil
}

// cached returns a replay from the response cache, or nil on a miss. Cache
// failures fall through to the store.
func (uc *AuthorizeCardUseCase) cached(ctx context.Context, log logger.Logger, key string) *AuthorizationResult {
	if uc.cache == nil {
		return nil
	}
	payload, ok, err := uc.cache.Get(ctx, key)
	if err != nil {
		log.LogWarning(ctx, "Response cache read failed", "error", err.Error())
		return nil
	}
	if !ok {
		return nil
	}
	res, err := replay(payload)
	if err != nil {
		log.LogWarning(ctx, "Cached response is not decodable", "error", err.Error())
		return nil
	}
	return res
}

func (uc *AuthorizeCardUseCase) observe(res *AuthorizationResult, start time.Time) {
	uc.metrics.ObserveAuthorization(string(res.Response.ActionCode), res.Replayed, time.Since(start))
}

func replay(payload []byte) (*AuthorizationResult, error) {
	var resp entity.AuthorizationResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode recorded response: %w", err)
	}
	return &AuthorizationResult{Response: &resp, Payload: payload, Replayed: true}, nil
}
