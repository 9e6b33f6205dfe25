package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/punchamoorthee/payledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type WithdrawalInput struct {
	UserID         int64
	Amount         decimal.Decimal
	PaymentDetails string
	Idempotency    Idempotency
}

type WithdrawalStatusInput struct {
	RequestID int64
	AdminID   int64
	Status    domain.WithdrawalStatus
	Notes     string
}

// WithdrawalService reserves funds when a payout is requested and returns
// them if the request is rejected before the money leaves.
type WithdrawalService struct {
	uow    store.UnitOfWork
	ledger *Ledger
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewWithdrawalService(uow store.UnitOfWork, ledger *Ledger, log logrus.FieldLogger) *WithdrawalService {
	return &WithdrawalService{uow: uow, ledger: ledger, log: log, now: time.Now}
}

// CreateRequest debits the amount and records a pending request atomically.
// The bool result reports a replay of an earlier request with the same key.
func (s *WithdrawalService) CreateRequest(ctx context.Context, in WithdrawalInput) (domain.WithdrawalRequest, bool, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return domain.WithdrawalRequest{}, false, err
	}
	paymentDetails := strings.TrimSpace(in.PaymentDetails)
	if paymentDetails == "" {
		return domain.WithdrawalRequest{}, false, fmt.Errorf("empty payment details: %w", domain.ErrInvalidRecord)
	}
	userID := in.UserID

	var out domain.WithdrawalRequest
	var replayed bool
	err = s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		id, ok, err := in.Idempotency.replay(ctx, tx, userID, "withdrawal")
		if err != nil {
			return err
		}
		if ok {
			replayed = true
			out, err = tx.GetWithdrawal(ctx, id)
			return err
		}

		w, err := tx.InsertWithdrawal(ctx, domain.WithdrawalRequest{
			UserID:         userID,
			Amount:         amount,
			PaymentDetails: paymentDetails,
			Status:         domain.WithdrawalPending,
		})
		if err != nil {
			return err
		}
		if _, err := s.ledger.Debit(ctx, tx, Movement{
			UserID:        userID,
			Amount:        amount,
			Reason:        domain.ReasonWithdrawalReserve,
			ReferenceType: "withdrawal",
			ReferenceID:   w.ID,
		}); err != nil {
			return err
		}
		out = w
		return in.Idempotency.remember(ctx, tx, userID, "withdrawal", w.ID)
	})
	if err != nil {
		return domain.WithdrawalRequest{}, false, err
	}

	if !replayed {
		withdrawalTransitions.WithLabelValues(string(out.Status)).Inc()
	}
	return out, replayed, nil
}

// UpdateStatus applies an admin decision. Rejecting a pending or approved
// request credits the reserved amount back in the same unit of work.
func (s *WithdrawalService) UpdateStatus(ctx context.Context, in WithdrawalStatusInput) (domain.WithdrawalRequest, error) {
	var out domain.WithdrawalRequest
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		w, err := tx.GetWithdrawalForUpdate(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if !w.Status.CanTransition(in.Status) {
			return fmt.Errorf("withdrawal %d is %s, cannot move to %s: %w", w.ID, w.Status, in.Status, domain.ErrInvalidState)
		}

		if w.Status.ReleasesReservation(in.Status) {
			if _, err := s.ledger.Credit(ctx, tx, Movement{
				UserID:        w.UserID,
				Amount:        w.Amount,
				Reason:        domain.ReasonWithdrawalRelease,
				ReferenceType: "withdrawal",
				ReferenceID:   w.ID,
			}); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		adminID := in.AdminID
		w.Status = in.Status
		w.AdminNotes = in.Notes
		w.ProcessedBy = &adminID
		w.ProcessedAt = &now
		if err := tx.UpdateWithdrawal(ctx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return domain.WithdrawalRequest{}, err
	}

	withdrawalTransitions.WithLabelValues(string(out.Status)).Inc()
	s.log.WithFields(logrus.Fields{
		"withdrawal_id": out.ID,
		"status":        out.Status,
		"admin_id":      in.AdminID,
	}).Info("withdrawal status updated")
	return out, nil
}

func (s *WithdrawalService) ListForUser(ctx context.Context, userID int64) ([]domain.WithdrawalRequest, error) {
	var out []domain.WithdrawalRequest
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.ListWithdrawals(ctx, userID)
		return err
	})
	return out, err
}

// Get returns a withdrawal request owned by userID.
func (s *WithdrawalService) Get(ctx context.Context, requestID, userID int64) (domain.WithdrawalRequest, error) {
	var out domain.WithdrawalRequest
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		w, err := tx.GetWithdrawal(ctx, requestID)
		if err != nil {
			return err
		}
		if w.UserID != userID {
			return fmt.Errorf("withdrawal %d: %w", requestID, domain.ErrNotFound)
		}
		out = w
		return nil
	})
	return out, err
}
