package entity

import (
	"errors"
	"testing"
)

func TestAuthorizationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     AuthorizationRequest
		wantErr error
	}{
		{
			name:    "valid request",
			req:     AuthorizationRequest{IdempotencyKey: "idem-1", AmountTransaction: "10.00"},
			wantErr: nil,
		},
		{
			name:    "missing idempotency key",
			req:     AuthorizationRequest{AmountTransaction: "10.00"},
			wantErr: ErrMissingIdempotencyKey,
		},
		{
			name:    "blank idempotency key",
			req:     AuthorizationRequest{IdempotencyKey: "   "},
			wantErr: ErrMissingIdempotencyKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AuthorizationRequest.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewAuthorizationResponse(t *testing.T) {
	req := &AuthorizationRequest{
		PrimaryAccountNumber:     "545454******5454",
		AmountTransaction:        "10.00",
		RetrievalReferenceNumber: "012345678901",
		CardAcceptorName:         "SuperMart Downtown",
		IdempotencyKey:           "idem-1",
	}

	resp := NewAuthorizationResponse(req, ActionApproved, "a1b2c3", 9000)

	if resp.MessageType != "2110" {
		t.Errorf("MessageType = %q", resp.MessageType)
	}
	if resp.PrimaryAccountNumber != req.PrimaryAccountNumber || resp.CardAcceptorName != req.CardAcceptorName {
		t.Errorf("pass-through fields not echoed: %+v", resp)
	}
	if len(resp.AdditionalAmounts) != 1 {
		t.Fatalf("AdditionalAmounts = %d entries", len(resp.AdditionalAmounts))
	}
	block := resp.AdditionalAmounts[0]
	if block.Value != "000000009000" {
		t.Errorf("Value = %q, want 000000009000", block.Value)
	}
	if block.CurrencyCode != "840" || block.CurrencyMinorUnit != "2" || block.AmountSign != "C" {
		t.Errorf("unexpected balance block %+v", block)
	}

	declined := NewAuthorizationResponse(req, ActionCardRestricted, "", 0)
	if declined.ApprovalCode != NoApprovalCode {
		t.Errorf("decline ApprovalCode = %q, want %q", declined.ApprovalCode, NoApprovalCode)
	}
}

func TestAmountSource(t *testing.T) {
	req := &AuthorizationRequest{AmountTransaction: "10.00", AmountCardholderBilling: "12.00"}

	src, err := ParseAmountSource("")
	if err != nil || req.Amount(src) != "10.00" {
		t.Errorf("default source picked %q (%v)", req.Amount(src), err)
	}
	src, err = ParseAmountSource("cardholderBilling")
	if err != nil || req.Amount(src) != "12.00" {
		t.Errorf("billing source picked %q (%v)", req.Amount(src), err)
	}
	if _, err := ParseAmountSource("settlement"); !errors.Is(err, ErrInvalidEnum) {
		t.Errorf("ParseAmountSource(settlement) error = %v", err)
	}
}

func TestEcomContext_Frictionless(t *testing.T) {
	tests := []struct {
		ecom EcomContext
		want bool
	}{
		{EcomContext{ThreeDS: "frictionless", AVSResult: "Y"}, true},
		{EcomContext{ThreeDS: "frictionless", AVSResult: "N"}, false},
		{EcomContext{ThreeDS: "challenge", AVSResult: "Y"}, false},
		{EcomContext{}, false},
	}
	for _, tt := range tests {
		if got := tt.ecom.Frictionless(); got != tt.want {
			t.Errorf("%+v Frictionless() = %v, want %v", tt.ecom, got, tt.want)
		}
	}
}

func TestApprovalCodeFor(t *testing.T) {
	if got := ApprovalCodeFor("0f3c9a7e-0000-0000-0000-000000000000"); got != "0f3c9a" {
		t.Errorf("ApprovalCodeFor() = %q", got)
	}
	if got := ApprovalCodeFor("abc"); got != NoApprovalCode {
		t.Errorf("short id ApprovalCodeFor() = %q", got)
	}
}
