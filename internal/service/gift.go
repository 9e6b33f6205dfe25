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

// redemptionRate is the share of the purchase price a recipient gets back.
var redemptionRate = decimal.RequireFromString("0.73")

// RedemptionValue converts a gift's purchase price into site balance.
func RedemptionValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(redemptionRate).Round(2)
}

type SendGiftInput struct {
	SenderID       int64
	RecipientID    int64
	GiftItemID     int64
	Message        string
	IsAnonymous    bool
	UseSiteBalance bool
	Currency       string
	// Used only when the gift is paid directly.
	PaymentCountryID    int64
	PaymentMethodTypeID int64
}

// SentGift is the new gift row and the transaction that audits its purchase.
type SentGift struct {
	Gift        domain.UserGift
	Transaction domain.Transaction
}

type GiftService struct {
	uow           store.UnitOfWork
	ledger        *Ledger
	subscriptions *SubscriptionService
	directory     MethodDirectory
	currency      string
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewGiftService(uow store.UnitOfWork, ledger *Ledger, subscriptions *SubscriptionService, directory MethodDirectory, currency string, log logrus.FieldLogger) *GiftService {
	return &GiftService{
		uow:           uow,
		ledger:        ledger,
		subscriptions: subscriptions,
		directory:     directory,
		currency:      currency,
		log:           log,
		now:           time.Now,
	}
}

// SendGift buys a catalogue item for another user. Paid from site balance
// the purchase completes at once; paid directly it waits for verification
// like any other payment.
func (s *GiftService) SendGift(ctx context.Context, in SendGiftInput) (SentGift, error) {
	if in.SenderID == in.RecipientID {
		return SentGift{}, fmt.Errorf("sender and recipient are both %d: %w", in.SenderID, domain.ErrInvalidRecord)
	}

	methodName := domain.MethodSiteBalance
	status := domain.TxCompleted
	if !in.UseSiteBalance {
		if _, err := activeMethod(ctx, s.directory, in.PaymentCountryID, in.PaymentMethodTypeID); err != nil {
			return SentGift{}, err
		}
		methodName = domain.MethodDirect
		status = domain.TxPendingPayment
	}
	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = s.currency
	}

	var out SentGift
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.GetGiftItem(ctx, in.GiftItemID)
		if err != nil {
			return err
		}
		if !item.IsActive {
			return fmt.Errorf("gift item %d is retired: %w", item.ID, domain.ErrNotFound)
		}

		tier, err := s.subscriptions.TierOf(ctx, tx, in.SenderID)
		if err != nil {
			return err
		}
		if !tier.AtLeast(item.RequiredTier) {
			return fmt.Errorf("gift item %d needs %s, sender has %s: %w", item.ID, item.RequiredTier, tier, domain.ErrTierInsufficient)
		}

		price, err := normalizeAmount(item.Price)
		if err != nil {
			return fmt.Errorf("gift item %d price: %w", item.ID, err)
		}

		t, err := tx.InsertTransaction(ctx, domain.Transaction{
			UserID:              in.SenderID,
			Amount:              price,
			Currency:            currency,
			ItemCategory:        domain.CategoryGift,
			PayableItemID:       item.ID,
			Description:         "gift " + item.Name,
			PaymentCountryID:    in.PaymentCountryID,
			PaymentMethodTypeID: in.PaymentMethodTypeID,
			PaymentMethodName:   methodName,
			Status:              status,
		})
		if err != nil {
			return err
		}

		if in.UseSiteBalance {
			if _, err := s.ledger.Debit(ctx, tx, Movement{
				UserID:        in.SenderID,
				Amount:        price,
				Reason:        domain.ReasonGiftPurchase,
				ReferenceType: "transaction",
				ReferenceID:   t.ID,
			}); err != nil {
				return err
			}
		}

		g, err := tx.InsertUserGift(ctx, domain.UserGift{
			SenderID:              in.SenderID,
			RecipientID:           in.RecipientID,
			GiftItemID:            item.ID,
			TransactionID:         t.ID,
			Message:               in.Message,
			OriginalPurchasePrice: &price,
			IsAnonymous:           in.IsAnonymous,
		})
		if err != nil {
			return err
		}
		out = SentGift{Gift: g, Transaction: t}
		return nil
	})
	if err != nil {
		return SentGift{}, err
	}

	giftEvents.WithLabelValues("sent", methodName).Inc()
	return out, nil
}

// RedeemGift converts a received gift into site balance at the redemption
// rate of its original price. Only Premium subscribers and above may redeem.
func (s *GiftService) RedeemGift(ctx context.Context, giftID, userID int64) (domain.UserGift, error) {
	var out domain.UserGift
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		tier, err := s.subscriptions.TierOf(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !tier.AtLeast(domain.TierPremium) {
			return fmt.Errorf("redeeming needs %s, user has %s: %w", domain.TierPremium, tier, domain.ErrTierInsufficient)
		}

		g, err := tx.GetUserGiftForUpdate(ctx, giftID)
		if err != nil {
			return err
		}
		if g.RecipientID != userID {
			return fmt.Errorf("gift %d: %w", giftID, domain.ErrNotFound)
		}
		if g.IsRedeemed {
			return fmt.Errorf("gift %d: %w", giftID, domain.ErrAlreadyRedeemed)
		}
		if g.OriginalPurchasePrice == nil {
			return fmt.Errorf("gift %d has no purchase price: %w", giftID, domain.ErrInvalidRecord)
		}

		paid, err := tx.GetTransaction(ctx, g.TransactionID)
		if err != nil {
			return err
		}
		if paid.Status != domain.TxCompleted {
			return fmt.Errorf("gift %d purchase is %s: %w", giftID, paid.Status, domain.ErrInvalidState)
		}

		value := RedemptionValue(*g.OriginalPurchasePrice)
		now := s.now().UTC()
		g.IsRedeemed = true
		g.RedeemedValue = &value
		g.RedeemedAt = &now
		if err := tx.UpdateUserGift(ctx, g); err != nil {
			return err
		}

		if value.IsPositive() {
			if _, err := s.ledger.Credit(ctx, tx, Movement{
				UserID:        userID,
				Amount:        value,
				Reason:        domain.ReasonGiftRedemption,
				ReferenceType: "user_gift",
				ReferenceID:   g.ID,
			}); err != nil {
				return err
			}
		}
		out = g
		return nil
	})
	if err != nil {
		return domain.UserGift{}, err
	}

	giftEvents.WithLabelValues("redeemed", "").Inc()
	s.log.WithFields(logrus.Fields{
		"gift_id": out.ID,
		"user_id": userID,
		"value":   out.RedeemedValue.StringFixed(2),
	}).Info("gift redeemed")
	return out, nil
}

// Received lists gifts sent to the user, newest first.
func (s *GiftService) Received(ctx context.Context, userID int64) ([]domain.UserGift, error) {
	var out []domain.UserGift
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.ListReceivedGifts(ctx, userID)
		return err
	})
	return out, err
}
