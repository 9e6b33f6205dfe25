package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/punchamoorthee/payledger/internal/models"
	"github.com/punchamoorthee/payledger/internal/service"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Services bundles the workflows the HTTP surface exposes.
type Services struct {
	Ledger        *service.Ledger
	Transactions  *service.TransactionService
	Withdrawals   *service.WithdrawalService
	Gifts         *service.GiftService
	Subscriptions *service.SubscriptionService
}

type Handler struct {
	svc        Services
	validate   *validator.Validate
	log        logrus.FieldLogger
	adminToken string
}

func NewHandler(svc Services, adminToken string, log logrus.FieldLogger) *Handler {
	return &Handler{
		svc:        svc,
		validate:   validator.New(),
		log:        log,
		adminToken: adminToken,
	}
}

func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req models.InitiatePaymentRequest
	reqHash, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	category, err := domain.ParseItemCategory(req.ItemCategory)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	res, err := h.svc.Transactions.Initiate(r.Context(), service.InitiateInput{
		UserID:              userID(r),
		Amount:              req.Amount,
		Currency:            req.Currency,
		ItemCategory:        category,
		PayableItemID:       req.PayableItemID,
		Description:         req.Description,
		PaymentCountryID:    req.PaymentCountryID,
		PaymentMethodTypeID: req.PaymentMethodTypeID,
		Idempotency:         service.Idempotency{Key: r.Header.Get("Idempotency-Key"), RequestHash: reqHash},
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/payments/%d", res.Transaction.ID))
	h.respondJSON(w, code, models.InitiatePaymentResponse{
		Transaction:          res.Transaction,
		Instructions:         res.Instructions,
		ConfigurationDetails: res.ConfigurationDetails,
	})
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Transactions.ListForUser(r.Context(), userID(r), queryLimit(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, nonNil(out))
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Transactions.Get(r.Context(), id, userID(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, t)
}

func (h *Handler) SubmitReference(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req models.SubmitReferenceRequest
	if _, ok := h.decode(w, r, &req); !ok {
		return
	}
	t, err := h.svc.Transactions.SubmitReference(r.Context(), id, userID(r), req.Reference)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, t)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	acc, err := h.svc.Ledger.Account(r.Context(), userID(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, acc)
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Ledger.Entries(r.Context(), userID(r), queryLimit(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, nonNil(out))
}

// CreateWithdrawal requires an Idempotency-Key so a retried request never
// reserves the amount twice.
func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey == "" {
		h.respondError(w, r, http.StatusBadRequest, "Missing Idempotency-Key")
		return
	}

	var req models.CreateWithdrawalRequest
	reqHash, ok := h.decode(w, r, &req)
	if !ok {
		return
	}

	out, replayed, err := h.svc.Withdrawals.CreateRequest(r.Context(), service.WithdrawalInput{
		UserID:         userID(r),
		Amount:         req.Amount,
		PaymentDetails: req.PaymentDetails,
		Idempotency:    service.Idempotency{Key: idemKey, RequestHash: reqHash},
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	code := http.StatusCreated
	if replayed {
		code = http.StatusOK
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/withdrawals/%d", out.ID))
	h.respondJSON(w, code, out)
}

func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Withdrawals.ListForUser(r.Context(), userID(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, nonNil(out))
}

func (h *Handler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Withdrawals.Get(r.Context(), id, userID(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *Handler) SendGift(w http.ResponseWriter, r *http.Request) {
	var req models.SendGiftRequest
	if _, ok := h.decode(w, r, &req); !ok {
		return
	}
	out, err := h.svc.Gifts.SendGift(r.Context(), service.SendGiftInput{
		SenderID:            userID(r),
		RecipientID:         req.RecipientID,
		GiftItemID:          req.GiftItemID,
		Message:             req.Message,
		IsAnonymous:         req.IsAnonymous,
		UseSiteBalance:      req.UseSiteBalance,
		Currency:            req.Currency,
		PaymentCountryID:    req.PaymentCountryID,
		PaymentMethodTypeID: req.PaymentMethodTypeID,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, models.SendGiftResponse{Gift: out.Gift, Transaction: out.Transaction})
}

func (h *Handler) ListGifts(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Gifts.Received(r.Context(), userID(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, nonNil(out))
}

func (h *Handler) RedeemGift(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Gifts.RedeemGift(r.Context(), id, userID(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Subscriptions.Current(r.Context(), userID(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

// Helpers

// decode reads the JSON body into dst and validates it. It returns the hex
// SHA-256 of the raw body for idempotency checks.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) (string, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Unreadable body")
		return "", false
	}
	hash := sha256.Sum256(body)
	r.Body = io.NopCloser(bytes.NewBuffer(body))

	if err := json.Unmarshal(body, dst); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid JSON")
		return "", false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondError(w, r, http.StatusBadRequest, validationMessage(err))
		return "", false
	}
	return hex.EncodeToString(hash[:]), true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Field %s failed %s validation", fe.Field(), fe.Tag())
	}
	return "Invalid request"
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, r, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	h.respondJSON(w, code, models.ErrorResponse{Error: msg, RequestID: requestID(r)})
}

// respondErr maps a workflow error to its HTTP status.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code == http.StatusInternalServerError {
		h.log.WithError(err).WithField("request_id", requestID(r)).Error("request failed")
		msg = "Internal error"
	}
	h.respondError(w, r, code, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrTierInsufficient):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyRedeemed),
		errors.Is(err, domain.ErrIdempotencyConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, domain.ErrIdempotencyMismatch):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrInvalidRecord):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, ""
	}
}
