package service

import (
	"context"
	"errors"
	"testing"

	"github.com/punchamoorthee/payledger/internal/domain"
)

func TestRedemptionValue(t *testing.T) {
	cases := map[string]string{
		"100":   "73",
		"10":    "7.3",
		"0.99":  "0.72",
		"19.99": "14.59",
		"0.01":  "0.01",
	}
	for price, want := range cases {
		if got := RedemptionValue(dec(price)); !got.Equal(dec(want)) {
			t.Errorf("price %s: expected %s, got %s", price, want, got)
		}
	}
}

func TestSendGiftTierInsufficient(t *testing.T) {
	e := setupTest(t)
	ctx := context.Background()

	e.subscribe(t, 1, domain.TierBasic)
	e.fund(t, 1, "500")
	crown := e.mem.AddGiftItem(domain.GiftItem{Name: "Crown", Price: dec("100"), RequiredTier: domain.TierElite, IsActive: true})

	_, err := e.gifts.SendGift(ctx, SendGiftInput{SenderID: 1, RecipientID: 2, GiftItemID: crown.ID, UseSiteBalance: true})
	if !errors.Is(err, domain.ErrTierInsufficient) {
		t.Fatalf("expected ErrTierInsufficient, got %v", err)
	}
	if n := len(e.mem.UserGifts()); n != 0 {
		t.Fatalf("expected no gift rows, got %d", n)
	}
	if n := len(e.transactionsOf(t, 1)); n != 0 {
		t.Fatalf("expected no transactions, got %d", n)
	}
	e.expectBalance(t, 1, "500")
}

func TestSendGiftFromBalanceAndRedeem(t *testing.T) {
	e := setupTest(t)
	ctx := context.Background()

	e.subscribe(t, 1, domain.TierBasic)
	e.subscribe(t, 2, domain.TierPremium)
	e.fund(t, 1, "150")
	bouquet := e.mem.AddGiftItem(domain.GiftItem{Name: "Bouquet", Price: dec("100"), RequiredTier: domain.TierBasic, IsActive: true})

	sent, err := e.gifts.SendGift(ctx, SendGiftInput{SenderID: 1, RecipientID: 2, GiftItemID: bouquet.ID, Message: "hi", UseSiteBalance: true})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.Transaction.Status != domain.TxCompleted || sent.Transaction.PaymentMethodName != domain.MethodSiteBalance ||
		sent.Transaction.ItemCategory != domain.CategoryGift || sent.Transaction.Currency != "USD" {
		t.Fatalf("unexpected audit transaction %+v", sent.Transaction)
	}
	if sent.Gift.OriginalPurchasePrice == nil || !sent.Gift.OriginalPurchasePrice.Equal(dec("100")) {
		t.Fatalf("expected price snapshot 100, got %v", sent.Gift.OriginalPurchasePrice)
	}
	e.expectBalance(t, 1, "50")

	// Catalogue price changes must not affect the redemption value.
	e.mem.SetGiftPrice(bouquet.ID, dec("500"))

	redeemed, err := e.gifts.RedeemGift(ctx, sent.Gift.ID, 2)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if !redeemed.IsRedeemed || redeemed.RedeemedValue == nil || !redeemed.RedeemedValue.Equal(dec("73")) || redeemed.RedeemedAt == nil {
		t.Fatalf("unexpected redeemed gift %+v", redeemed)
	}
	e.expectBalance(t, 2, "73")

	if _, err := e.gifts.RedeemGift(ctx, sent.Gift.ID, 2); !errors.Is(err, domain.ErrAlreadyRedeemed) {
		t.Fatalf("expected ErrAlreadyRedeemed, got %v", err)
	}
	e.expectBalance(t, 2, "73")

	received, err := e.gifts.Received(ctx, 2)
	if err != nil || len(received) != 1 {
		t.Fatalf("expected 1 received gift, got %d (%v)", len(received), err)
	}
}

func TestSendGiftInsufficientBalance(t *testing.T) {
	e := setupTest(t)
	ctx := context.Background()

	e.fund(t, 1, "0.50")
	rose := e.mem.AddGiftItem(domain.GiftItem{Name: "Rose", Price: dec("1"), RequiredTier: domain.TierNone, IsActive: true})

	_, err := e.gifts.SendGift(ctx, SendGiftInput{SenderID: 1, RecipientID: 2, GiftItemID: rose.ID, UseSiteBalance: true})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if n := len(e.mem.UserGifts()); n != 0 {
		t.Fatalf("expected no gift rows, got %d", n)
	}
	if n := len(e.transactionsOf(t, 1)); n != 0 {
		t.Fatalf("expected the audit transaction rolled back, got %d", n)
	}
}

func TestSendGiftRejectsBadInput(t *testing.T) {
	e := setupTest(t)
	ctx := context.Background()
	retired := e.mem.AddGiftItem(domain.GiftItem{Name: "Old", Price: dec("1"), IsActive: false})

	if _, err := e.gifts.SendGift(ctx, SendGiftInput{SenderID: 1, RecipientID: 1, GiftItemID: retired.ID, UseSiteBalance: true}); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord for self gift, got %v", err)
	}
	if _, err := e.gifts.SendGift(ctx, SendGiftInput{SenderID: 1, RecipientID: 2, GiftItemID: retired.ID, UseSiteBalance: true}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for retired item, got %v", err)
	}
	if _, err := e.gifts.SendGift(ctx, SendGiftInput{SenderID: 1, RecipientID: 2, GiftItemID: 777, UseSiteBalance: true}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown item, got %v", err)
	}
}

func TestDirectGiftRedeemableOnlyAfterVerification(t *testing.T) {
	e := setupTest(t)
	ctx := context.Background()

	e.subscribe(t, 2, domain.TierElite)
	rose := e.mem.AddGiftItem(domain.GiftItem{Name: "Rose", Price: dec("20"), RequiredTier: domain.TierNone, IsActive: true})

	sent, err := e.gifts.SendGift(ctx, SendGiftInput{
		SenderID: 1, RecipientID: 2, GiftItemID: rose.ID,
		PaymentCountryID: bankCountry, PaymentMethodTypeID: bankMethod,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.Transaction.Status != domain.TxPendingPayment || sent.Transaction.PaymentMethodName != domain.MethodDirect {
		t.Fatalf("unexpected audit transaction %+v", sent.Transaction)
	}
	e.expectBalance(t, 1, "0")

	if _, err := e.gifts.RedeemGift(ctx, sent.Gift.ID, 2); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before payment, got %v", err)
	}

	if _, err := e.transactions.SubmitReference(ctx, sent.Transaction.ID, 1, "R"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.transactions.Verify(ctx, VerifyInput{TransactionID: sent.Transaction.ID, AdminID: 1, Status: domain.TxCompleted}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	e.expectBalance(t, 1, "0")

	if _, err := e.gifts.RedeemGift(ctx, sent.Gift.ID, 2); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	e.expectBalance(t, 2, "14.60")
}

func TestDirectGiftRequiresConfiguredMethod(t *testing.T) {
	e := setupTest(t)
	rose := e.mem.AddGiftItem(domain.GiftItem{Name: "Rose", Price: dec("1"), IsActive: true})

	_, err := e.gifts.SendGift(context.Background(), SendGiftInput{
		SenderID: 1, RecipientID: 2, GiftItemID: rose.ID, PaymentCountryID: bankCountry, PaymentMethodTypeID: offMethod,
	})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestRedeemGiftChecks(t *testing.T) {
	e := setupTest(t)
	ctx := context.Background()

	e.subscribe(t, 2, domain.TierBasic)
	e.subscribe(t, 3, domain.TierPremium)
	e.fund(t, 1, "10")
	rose := e.mem.AddGiftItem(domain.GiftItem{Name: "Rose", Price: dec("10"), IsActive: true})

	sent, err := e.gifts.SendGift(ctx, SendGiftInput{SenderID: 1, RecipientID: 2, GiftItemID: rose.ID, UseSiteBalance: true})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := e.gifts.RedeemGift(ctx, sent.Gift.ID, 2); !errors.Is(err, domain.ErrTierInsufficient) {
		t.Fatalf("basic recipient: expected ErrTierInsufficient, got %v", err)
	}
	if _, err := e.gifts.RedeemGift(ctx, sent.Gift.ID, 3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("non-recipient: expected ErrNotFound, got %v", err)
	}

	corrupt := e.mem.PutUserGift(domain.UserGift{SenderID: 1, RecipientID: 3, GiftItemID: rose.ID, TransactionID: sent.Transaction.ID})
	if _, err := e.gifts.RedeemGift(ctx, corrupt.ID, 3); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Fatalf("missing price: expected ErrInvalidRecord, got %v", err)
	}
	e.expectBalance(t, 3, "0")
}
