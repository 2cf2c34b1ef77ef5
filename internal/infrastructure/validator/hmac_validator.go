package validator

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"walletcore.com/internal/domain/port"
	"walletcore.com/internal/infrastructure/logger"
)

// Signature headers sent by the card processor with every authorization.
const (
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderSignature = "X-Signature"
)

var (
	// ErrUnauthenticated is matched by every rejection so the transport can
	// answer 401 without inspecting the cause.
	ErrUnauthenticated = errors.New("webhook authentication failed")

	ErrMissingHeader    = fmt.Errorf("%w: missing header", ErrUnauthenticated)
	ErrStaleTimestamp   = fmt.Errorf("%w: timestamp out of tolerance", ErrUnauthenticated)
	ErrReplayedNonce    = fmt.Errorf("%w: nonce already used", ErrUnauthenticated)
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrUnauthenticated)
)

const nonceRetention = time.Hour

// NonceStore remembers recently used nonces so a captured request cannot be
// sent twice.
type NonceStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time
	now    func() time.Time
}

// NewNonceStore creates a new nonce store
func NewNonceStore() *NonceStore {
	return &NonceStore{
		nonces: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Claim records nonce and reports whether it was unused. Entries older than
// the retention window are forgotten.
func (ns *NonceStore) Claim(nonce string) bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	now := ns.now()
	if seen, exists := ns.nonces[nonce]; exists && now.Sub(seen) <= nonceRetention {
		return false
	}
	ns.nonces[nonce] = now

	if len(ns.nonces) > 10000 {
		for n, seen := range ns.nonces {
			if now.Sub(seen) > nonceRetention {
				delete(ns.nonces, n)
			}
		}
	}
	return true
}

var _ port.WebhookValidator = (*HMACValidator)(nil)

// HMACValidator authenticates authorization webhooks signed with a shared
// secret: hex(HMAC-SHA256(secret, timestamp + "\n" + nonce + "\n" + body)).
type HMACValidator struct {
	secret             []byte
	nonceStore         *NonceStore
	timestampTolerance time.Duration
	now                func() time.Time
	logger             logger.Logger
}

// NewHMACValidator creates a new HMAC validator
func NewHMACValidator(secret string, timestampTolerance time.Duration, logger logger.Logger) *HMACValidator {
	return &HMACValidator{
		secret:             []byte(secret),
		nonceStore:         NewNonceStore(),
		timestampTolerance: timestampTolerance,
		now:                time.Now,
		logger:             logger,
	}
}

// ValidateRequest checks headers, freshness, the signature and finally nonce
// reuse. Every failure matches ErrUnauthenticated.
func (v *HMACValidator) ValidateRequest(ctx context.Context, header http.Header, body []byte) error {
	timestampStr := header.Get(HeaderTimestamp)
	nonce := header.Get(HeaderNonce)
	signature := header.Get(HeaderSignature)

	for _, h := range [...]struct{ name, value string }{
		{HeaderTimestamp, timestampStr},
		{HeaderNonce, nonce},
		{HeaderSignature, signature},
	} {
		if h.value == "" {
			return fmt.Errorf("%w %s", ErrMissingHeader, h.name)
		}
	}

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid %s %q", ErrUnauthenticated, HeaderTimestamp, timestampStr)
	}

	now := v.now()
	skew := now.Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.timestampTolerance {
		v.logger.LogWarning(ctx, "Webhook timestamp out of tolerance",
			"timestamp", timestamp,
			"current_time", now.Unix(),
			"skew_seconds", skew.Seconds(),
			"tolerance_seconds", v.timestampTolerance.Seconds())
		return fmt.Errorf("%w: skew %v exceeds %v", ErrStaleTimestamp, skew, v.timestampTolerance)
	}

	expected := Sign(v.secret, timestampStr, nonce, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		v.logger.LogWarning(ctx, "Webhook signature mismatch", "nonce", nonce)
		return ErrInvalidSignature
	}

	// Only authentic requests burn a nonce.
	if !v.nonceStore.Claim(nonce) {
		v.logger.LogWarning(ctx, "Webhook nonce reused", "nonce", nonce, "timestamp", timestamp)
		return ErrReplayedNonce
	}
	return nil
}

// Sign computes the signature header value for a request.
func Sign(secret []byte, timestamp, nonce string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("\n"))
	mac.Write([]byte(nonce))
	mac.Write([]byte("\n"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
