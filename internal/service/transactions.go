package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/punchamoorthee/payledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MethodDirectory resolves the configuration of a payment method in a country.
type MethodDirectory interface {
	Lookup(ctx context.Context, countryID, methodTypeID int64) (domain.PaymentMethod, error)
}

// Alerter is told about verify calls whose fulfillment was rolled back.
type Alerter interface {
	FulfillmentFailed(ctx context.Context, t domain.Transaction, cause error) error
}

type InitiateInput struct {
	UserID              int64
	Amount              decimal.Decimal
	Currency            string
	ItemCategory        domain.ItemCategory
	PayableItemID       int64
	Description         string
	PaymentCountryID    int64
	PaymentMethodTypeID int64
	Idempotency         Idempotency
}

// Initiated is a new transaction plus what the user needs to pay it.
// Replayed is set when an earlier request with the same key created it.
type Initiated struct {
	Transaction          domain.Transaction
	Instructions         string
	ConfigurationDetails map[string]string
	Replayed             bool
}

type VerifyInput struct {
	TransactionID int64
	AdminID       int64
	Status        domain.TransactionStatus
	Notes         string
}

// TransactionService drives payments through
// pending_payment -> pending_verification -> completed | declined.
type TransactionService struct {
	uow        store.UnitOfWork
	directory  MethodDirectory
	dispatcher *Dispatcher
	alerter    Alerter
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewTransactionService(uow store.UnitOfWork, directory MethodDirectory, dispatcher *Dispatcher, alerter Alerter, log logrus.FieldLogger) *TransactionService {
	return &TransactionService{
		uow:        uow,
		directory:  directory,
		dispatcher: dispatcher,
		alerter:    alerter,
		log:        log,
		now:        time.Now,
	}
}

// activeMethod looks the method up outside any unit of work and rejects
// unknown or disabled configurations.
func activeMethod(ctx context.Context, dir MethodDirectory, countryID, methodTypeID int64) (domain.PaymentMethod, error) {
	pm, err := dir.Lookup(ctx, countryID, methodTypeID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.PaymentMethod{}, fmt.Errorf("method %d in country %d: %w", methodTypeID, countryID, domain.ErrConfiguration)
	}
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	if !pm.IsActive {
		return domain.PaymentMethod{}, fmt.Errorf("method %d in country %d is disabled: %w", methodTypeID, countryID, domain.ErrConfiguration)
	}
	return pm, nil
}

func (s *TransactionService) Initiate(ctx context.Context, in InitiateInput) (Initiated, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return Initiated{}, err
	}
	if in.ItemCategory == domain.CategoryWithdrawal {
		return Initiated{}, fmt.Errorf("withdrawals are requested, not paid: %w", domain.ErrInvalidRecord)
	}

	pm, err := activeMethod(ctx, s.directory, in.PaymentCountryID, in.PaymentMethodTypeID)
	if err != nil {
		return Initiated{}, err
	}

	var out domain.Transaction
	var replayed bool
	err = s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		id, ok, err := in.Idempotency.replay(ctx, tx, in.UserID, "transaction")
		if err != nil {
			return err
		}
		if ok {
			replayed = true
			out, err = tx.GetTransaction(ctx, id)
			return err
		}

		if in.ItemCategory == domain.CategorySubscription {
			if _, err := tx.GetPackage(ctx, in.PayableItemID); err != nil {
				return err
			}
		}
		out, err = tx.InsertTransaction(ctx, domain.Transaction{
			UserID:              in.UserID,
			Amount:              amount,
			Currency:            strings.ToUpper(in.Currency),
			ItemCategory:        in.ItemCategory,
			PayableItemID:       in.PayableItemID,
			Description:         in.Description,
			PaymentCountryID:    in.PaymentCountryID,
			PaymentMethodTypeID: in.PaymentMethodTypeID,
			PaymentMethodName:   pm.Name,
			Status:              domain.TxPendingPayment,
		})
		if err != nil {
			return err
		}
		return in.Idempotency.remember(ctx, tx, in.UserID, "transaction", out.ID)
	})
	if err != nil {
		return Initiated{}, err
	}

	if !replayed {
		transactionTransitions.WithLabelValues(string(out.ItemCategory), string(out.Status)).Inc()
	}
	return Initiated{
		Transaction:          out,
		Instructions:         pm.UserInstructions,
		ConfigurationDetails: pm.ConfigurationDetails,
		Replayed:             replayed,
	}, nil
}

// SubmitReference records the user's proof of payment and queues the
// transaction for an admin.
func (s *TransactionService) SubmitReference(ctx context.Context, transactionID, userID int64, reference string) (domain.Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return domain.Transaction{}, fmt.Errorf("empty payment reference: %w", domain.ErrInvalidRecord)
	}

	var out domain.Transaction
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := tx.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.UserID != userID {
			return fmt.Errorf("transaction %d: %w", transactionID, domain.ErrForbidden)
		}
		if !t.Status.CanTransition(domain.TxPendingVerification) {
			return fmt.Errorf("transaction %d is %s: %w", transactionID, t.Status, domain.ErrInvalidState)
		}
		t.UserReference = reference
		t.Status = domain.TxPendingVerification
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	transactionTransitions.WithLabelValues(string(out.ItemCategory), string(out.Status)).Inc()
	return out, nil
}

// Verify records the admin decision. A completed transaction is fulfilled in
// the same unit of work; if fulfillment fails nothing is written and the
// transaction stays pending_verification.
func (s *TransactionService) Verify(ctx context.Context, in VerifyInput) (domain.Transaction, error) {
	if in.Status != domain.TxCompleted && in.Status != domain.TxDeclined {
		return domain.Transaction{}, fmt.Errorf("verify to %s: %w", in.Status, domain.ErrInvalidState)
	}

	var out domain.Transaction
	var fulfillErr error
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		// 1. Lock and check the current state
		t, err := tx.GetTransactionForUpdate(ctx, in.TransactionID)
		if err != nil {
			return err
		}
		if !t.Status.CanTransition(in.Status) {
			return fmt.Errorf("transaction %d is %s: %w", t.ID, t.Status, domain.ErrInvalidState)
		}

		// 2. Record the decision
		now := s.now().UTC()
		adminID := in.AdminID
		t.Status = in.Status
		t.AdminNotes = in.Notes
		t.VerifiedBy = &adminID
		t.VerifiedAt = &now
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		out = t

		// 3. Fulfill
		if t.Status != domain.TxCompleted {
			return nil
		}
		if err := s.dispatcher.Fulfill(ctx, tx, t); err != nil {
			fulfillErr = err
			return err
		}
		return nil
	})

	if fulfillErr != nil {
		s.fulfillmentFailed(ctx, out, fulfillErr)
		return domain.Transaction{}, fmt.Errorf("fulfillment of transaction %d: %w", in.TransactionID, fulfillErr)
	}
	if err != nil {
		return domain.Transaction{}, err
	}

	transactionTransitions.WithLabelValues(string(out.ItemCategory), string(out.Status)).Inc()
	s.log.WithFields(logrus.Fields{
		"transaction_id": out.ID,
		"status":         out.Status,
		"admin_id":       in.AdminID,
	}).Info("transaction verified")
	return out, nil
}

func (s *TransactionService) fulfillmentFailed(ctx context.Context, t domain.Transaction, cause error) {
	kind := t.FulfillmentKind()
	fulfillmentFailures.WithLabelValues(string(kind)).Inc()
	entry := s.log.WithFields(logrus.Fields{
		"transaction_id": t.ID,
		"user_id":        t.UserID,
		"category":       kind,
	}).WithError(cause)
	entry.Error("fulfillment failed, verification rolled back")

	if s.alerter == nil {
		return
	}
	if err := s.alerter.FulfillmentFailed(ctx, t, cause); err != nil {
		entry.WithField("alert_error", err.Error()).Warn("fulfillment alert not delivered")
	}
}

// Get returns a transaction owned by userID.
func (s *TransactionService) Get(ctx context.Context, transactionID, userID int64) (domain.Transaction, error) {
	var out domain.Transaction
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.UserID != userID {
			return fmt.Errorf("transaction %d: %w", transactionID, domain.ErrNotFound)
		}
		out = t
		return nil
	})
	return out, err
}

func (s *TransactionService) ListForUser(ctx context.Context, userID int64, limit int) ([]domain.Transaction, error) {
	return s.list(ctx, store.TransactionFilter{UserID: userID, Limit: limit})
}

// PendingVerification returns the admin queue, oldest first.
func (s *TransactionService) PendingVerification(ctx context.Context, limit int) ([]domain.Transaction, error) {
	return s.list(ctx, store.TransactionFilter{Status: domain.TxPendingVerification, Limit: limit})
}

func (s *TransactionService) list(ctx context.Context, f store.TransactionFilter) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, f)
		return err
	})
	return out, err
}
