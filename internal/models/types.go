package models

import (
	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/shopspring/decimal"
)

// InitiatePaymentRequest is the payload of POST /payments.
// Amount is checked by the service, which rejects non-positive values.
type InitiatePaymentRequest struct {
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency" validate:"required,len=3,alpha"`
	ItemCategory        string          `json:"item_category" validate:"required,oneof=subscription deposit gift"`
	PayableItemID       int64           `json:"payable_item_id" validate:"gte=0"`
	Description         string          `json:"description" validate:"max=255"`
	PaymentCountryID    int64           `json:"payment_country_id" validate:"required,gt=0"`
	PaymentMethodTypeID int64           `json:"payment_method_type_id" validate:"required,gt=0"`
}

// InitiatePaymentResponse carries the transaction and how to pay it.
type InitiatePaymentResponse struct {
	Transaction          domain.Transaction `json:"transaction"`
	Instructions         string             `json:"instructions"`
	ConfigurationDetails map[string]string  `json:"configuration_details,omitempty"`
}

type SubmitReferenceRequest struct {
	Reference string `json:"reference" validate:"required,max=255"`
}

type VerifyPaymentRequest struct {
	Status string `json:"status" validate:"required,oneof=completed declined"`
	Notes  string `json:"notes" validate:"max=1000"`
}

type CreateWithdrawalRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	PaymentDetails string          `json:"payment_details" validate:"required,max=1000"`
}

type WithdrawalStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=approved processed rejected"`
	Notes  string `json:"notes" validate:"max=1000"`
}

// SendGiftRequest pays from site balance when UseSiteBalance is set,
// otherwise through the given payment method.
type SendGiftRequest struct {
	RecipientID         int64  `json:"recipient_id" validate:"required,gt=0"`
	GiftItemID          int64  `json:"gift_item_id" validate:"required,gt=0"`
	Message             string `json:"message" validate:"max=500"`
	IsAnonymous         bool   `json:"is_anonymous"`
	UseSiteBalance      bool   `json:"use_site_balance"`
	Currency            string `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentCountryID    int64  `json:"payment_country_id" validate:"required_without=UseSiteBalance"`
	PaymentMethodTypeID int64  `json:"payment_method_type_id" validate:"required_without=UseSiteBalance"`
}

type SendGiftResponse struct {
	Gift        domain.UserGift    `json:"gift"`
	Transaction domain.Transaction `json:"transaction"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
