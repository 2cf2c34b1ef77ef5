package port

import (
	"context"
	"net/http"
)

// WebhookValidator authenticates an inbound authorization webhook from its
// headers and raw body before the body is decoded.
type WebhookValidator interface {
	ValidateRequest(ctx context.Context, header http.Header, body []byte) error
}
