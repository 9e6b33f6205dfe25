package api

import (
	"net/http"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/punchamoorthee/payledger/internal/models"
	"github.com/punchamoorthee/payledger/internal/service"
)

func (h *Handler) PendingPayments(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Transactions.PendingVerification(r.Context(), queryLimit(r))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, nonNil(out))
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req models.VerifyPaymentRequest
	if _, ok := h.decode(w, r, &req); !ok {
		return
	}
	status, err := domain.ParseTransactionStatus(req.Status)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	out, err := h.svc.Transactions.Verify(r.Context(), service.VerifyInput{
		TransactionID: id,
		AdminID:       adminID(r),
		Status:        status,
		Notes:         req.Notes,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateWithdrawalStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req models.WithdrawalStatusRequest
	if _, ok := h.decode(w, r, &req); !ok {
		return
	}
	status, err := domain.ParseWithdrawalStatus(req.Status)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	out, err := h.svc.Withdrawals.UpdateStatus(r.Context(), service.WithdrawalStatusInput{
		RequestID: id,
		AdminID:   adminID(r),
		Status:    status,
		Notes:     req.Notes,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, out)
}
