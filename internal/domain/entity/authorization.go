package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionCode is the approve/decline field of an authorization response.
type ActionCode string

const (
	ActionApproved          ActionCode = "00"
	ActionDoNotHonor        ActionCode = "05"
	ActionInsufficientFunds ActionCode = "51"
	ActionCardRestricted    ActionCode = "57"
)

func (c ActionCode) Approved() bool { return c == ActionApproved }

const (
	ResponseMessageType = "2110"
	NoApprovalCode      = "000000"
	DefaultCurrencyCode = "840"
	approvalCodeLength  = 6
)

// AmountSource selects which request amount is debited.
type AmountSource string

const (
	AmountFromTransaction       AmountSource = "transaction"
	AmountFromCardholderBilling AmountSource = "cardholderBilling"
)

// ParseAmountSource maps a config value to its AmountSource.
func ParseAmountSource(s string) (AmountSource, error) {
	switch src := AmountSource(strings.TrimSpace(s)); src {
	case "", AmountFromTransaction:
		return AmountFromTransaction, nil
	case AmountFromCardholderBilling:
		return src, nil
	default:
		return "", fmt.Errorf("%w: amount source %q", ErrInvalidEnum, s)
	}
}

// EcomContext is present on card-not-present requests.
type EcomContext struct {
	AVSResult string `json:"avs_result"`
	ThreeDS   string `json:"three_ds"`
	IPAddress string `json:"ip_address,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

// Frictionless reports whether strong authentication completed without a
// challenge and the address verification matched.
func (e *EcomContext) Frictionless() bool {
	return e.ThreeDS == "frictionless" && e.AVSResult == "Y"
}

// AuthorizationRequest is the inbound authorization message.
type AuthorizationRequest struct {
	MessageType                            string       `json:"messageType,omitempty"`
	ProcessingCode                         string       `json:"processingCode,omitempty"`
	PrimaryAccountNumber                   string       `json:"primaryAccountNumber,omitempty"`
	AmountTransaction                      string       `json:"amountTransaction,omitempty"`
	AmountCardholderBilling                string       `json:"amountCardholderBilling,omitempty"`
	DateAndTimeTransmission                string       `json:"dateAndTimeTransmission,omitempty"`
	ConversionRateCardholderBilling        string       `json:"conversionRateCardholderBilling,omitempty"`
	SystemsTraceAuditNumber                string       `json:"systemsTraceAuditNumber,omitempty"`
	DateCapture                            string       `json:"dateCapture,omitempty"`
	MerchantCategoryCode                   string       `json:"merchantCategoryCode,omitempty"`
	AcquiringInstitutionIdentificationCode string       `json:"acquiringInstitutionIdentificationCode,omitempty"`
	RetrievalReferenceNumber               string       `json:"retrievalReferenceNumber,omitempty"`
	CardAcceptorTerminalIdentification     string       `json:"cardAcceptorTerminalIdentification,omitempty"`
	CardAcceptorIdentificationCode         string       `json:"cardAcceptorIdentificationCode,omitempty"`
	CardAcceptorName                       string       `json:"cardAcceptorName,omitempty"`
	CardAcceptorCity                       string       `json:"cardAcceptorCity,omitempty"`
	CardAcceptorCountryCode                string       `json:"cardAcceptorCountryCode,omitempty"`
	PosDataCode                            string       `json:"posDataCode,omitempty"`
	CardExpiry                             string       `json:"cardExpiry,omitempty"`
	CurrencyCode                           string       `json:"currencyCode,omitempty"`
	EntryMode                              string       `json:"entry_mode,omitempty"`
	TxnRef                                 string       `json:"txn_ref,omitempty"`
	IdempotencyKey                         string       `json:"idempotency_key"`
	Ecom                                   *EcomContext `json:"ecom,omitempty"`
}

// Validate validates the authorization request
func (r *AuthorizationRequest) Validate() error {
	if strings.TrimSpace(r.IdempotencyKey) == "" {
		return ErrMissingIdempotencyKey
	}
	return nil
}

// NumericCurrencyCode defaults to USD when the message carries none.
func (r *AuthorizationRequest) NumericCurrencyCode() string {
	if r.CurrencyCode == "" {
		return DefaultCurrencyCode
	}
	return r.CurrencyCode
}

// Amount returns the amount field selected by source.
func (r *AuthorizationRequest) Amount(source AmountSource) string {
	if source == AmountFromCardholderBilling {
		return r.AmountCardholderBilling
	}
	return r.AmountTransaction
}

// AdditionalAmount reports the post-authorization balance.
type AdditionalAmount struct {
	AccountType       string `json:"accountType"`
	AmountType        string `json:"amountType"`
	CurrencyCode      string `json:"currencyCode"`
	CurrencyMinorUnit string `json:"currencyMinorUnit"`
	AmountSign        string `json:"amountSign"`
	Value             string `json:"value"`
}

// AuthorizationResponse is the outbound message. Its field set is fixed so
// every decision, approve or decline, has the same shape.
type AuthorizationResponse struct {
	MessageType                            string             `json:"messageType"`
	PrimaryAccountNumber                   string             `json:"primaryAccountNumber"`
	ProcessingCode                         string             `json:"processingCode"`
	AmountTransaction                      string             `json:"amountTransaction"`
	AmountCardholderBilling                string             `json:"amountCardholderBilling"`
	DateAndTimeTransmission                string             `json:"dateAndTimeTransmission"`
	ConversionRateCardholderBilling        string             `json:"conversionRateCardholderBilling"`
	SystemsTraceAuditNumber                string             `json:"systemsTraceAuditNumber"`
	DateCapture                            string             `json:"dateCapture"`
	MerchantCategoryCode                   string             `json:"merchantCategoryCode"`
	AcquiringInstitutionIdentificationCode string             `json:"acquiringInstitutionIdentificationCode"`
	RetrievalReferenceNumber               string             `json:"retrievalReferenceNumber"`
	CardAcceptorTerminalIdentification     string             `json:"cardAcceptorTerminalIdentification"`
	CardAcceptorIdentificationCode         string             `json:"cardAcceptorIdentificationCode"`
	CardAcceptorName                       string             `json:"cardAcceptorName"`
	CardAcceptorCity                       string             `json:"cardAcceptorCity"`
	CardAcceptorCountryCode                string             `json:"cardAcceptorCountryCode"`
	PosDataCode                            string             `json:"posDataCode"`
	CardExpiry                             string             `json:"cardExpiry"`
	ActionCode                             ActionCode         `json:"actionCode"`
	ApprovalCode                           string             `json:"approvalCode"`
	AdditionalAmounts                      []AdditionalAmount `json:"additionalAmounts"`
}

// NewAuthorizationResponse echoes the pass-through request fields and attaches
// the decision and the balance block.
func NewAuthorizationResponse(req *AuthorizationRequest, code ActionCode, approvalCode string, balanceMinor int64) *AuthorizationResponse {
	numeric := req.NumericCurrencyCode()
	exponent := USD.MinorUnitExponent()
	if c, err := CurrencyFromNumeric(numeric); err == nil {
		exponent = c.MinorUnitExponent()
	}
	if approvalCode == "" {
		approvalCode = NoApprovalCode
	}
	return &AuthorizationResponse{
		MessageType:                            ResponseMessageType,
		PrimaryAccountNumber:                   req.PrimaryAccountNumber,
		ProcessingCode:                         req.ProcessingCode,
		AmountTransaction:                      req.AmountTransaction,
		AmountCardholderBilling:                req.AmountCardholderBilling,
		DateAndTimeTransmission:                req.DateAndTimeTransmission,
		ConversionRateCardholderBilling:        req.ConversionRateCardholderBilling,
		SystemsTraceAuditNumber:                req.SystemsTraceAuditNumber,
		DateCapture:                            req.DateCapture,
		MerchantCategoryCode:                   req.MerchantCategoryCode,
		AcquiringInstitutionIdentificationCode: req.AcquiringInstitutionIdentificationCode,
		RetrievalReferenceNumber:               req.RetrievalReferenceNumber,
		CardAcceptorTerminalIdentification:     req.CardAcceptorTerminalIdentification,
		CardAcceptorIdentificationCode:         req.CardAcceptorIdentificationCode,
		CardAcceptorName:                       req.CardAcceptorName,
		CardAcceptorCity:                       req.CardAcceptorCity,
		CardAcceptorCountryCode:                req.CardAcceptorCountryCode,
		PosDataCode:                            req.PosDataCode,
		CardExpiry:                             req.CardExpiry,
		ActionCode:                             code,
		ApprovalCode:                           approvalCode,
		AdditionalAmounts: []AdditionalAmount{{
			AccountType:       "00",
			AmountType:        "02",
			CurrencyCode:      numeric,
			CurrencyMinorUnit: strconv.Itoa(int(exponent)),
			AmountSign:        "C",
			Value:             fmt.Sprintf("%012d", balanceMinor),
		}},
	}
}

// ApprovalCodeFor derives the approval code from a ledger entry id.
func ApprovalCodeFor(transactionID string) string {
	if len(transactionID) < approvalCodeLength {
		return NoApprovalCode
	}
	return transactionID[:approvalCodeLength]
}
