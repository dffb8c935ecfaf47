package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	accessService "provena/internal/access/service"
	accessStore "provena/internal/access/store"
	assetService "provena/internal/asset/service"
	assetStore "provena/internal/asset/store"
	complianceService "provena/internal/compliance/service"
	complianceStore "provena/internal/compliance/store"
	"provena/internal/events"
	eventsMemory "provena/internal/events/store/memory"
	"provena/internal/exchange/funds"
	"provena/internal/exchange/models"
	exchangeStore "provena/internal/exchange/store"
	identityService "provena/internal/identity/service"
	identityStore "provena/internal/identity/store"
	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
	"provena/pkg/requestcontext"
)

// =============================================================================
// Exchange Service Test Suite
// =============================================================================
// Justification for unit tests: the escrow state machine couples four
// registries; the settlement arithmetic, deadline handling, and
// re-validation semantics need deterministic time and targeted failure
// injection that end-to-end flows cannot provide.

type ExchangeServiceSuite struct {
	suite.Suite
	store      *exchangeStore.InMemory
	ledger     *funds.Ledger
	events     *eventsMemory.Store
	access     *accessService.Service
	identity   *identityService.Service
	compliance *complianceService.Service
	assets     *assetService.Service
	service    *Service

	now      time.Time
	admin    id.AccountID
	issuer   id.AccountID
	resolver id.AccountID
	feeAcct  id.AccountID
	operator id.AccountID
	seller   id.AccountID
	buyer    id.AccountID
}

func TestExchangeServiceSuite(t *testing.T) {
	suite.Run(t, new(ExchangeServiceSuite))
}

func (s *ExchangeServiceSuite) SetupTest() {
	s.now = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.admin = id.AccountID("acct-admin")
	s.issuer = id.AccountID("acct-issuer")
	s.resolver = id.AccountID("acct-resolver")
	s.feeAcct = id.AccountID("acct-fees")
	s.operator = id.AccountID("acct-exchange")
	s.seller = id.AccountID("acct-seller")
	s.buyer = id.AccountID("acct-buyer")

	s.store = exchangeStore.NewInMemory()
	s.ledger = funds.NewLedger()
	s.events = eventsMemory.New()
	publisher := events.NewPublisher(s.events)

	s.access = accessService.New(accessStore.NewInMemory())
	ctx := context.Background()
	s.Require().NoError(s.access.Bootstrap(ctx, s.admin))
	s.Require().NoError(s.access.Grant(s.as(s.admin), s.admin, id.RoleAgent))
	s.Require().NoError(s.access.Grant(s.as(s.admin), s.admin, id.RoleComplianceOfficer))
	s.Require().NoError(s.access.Grant(s.as(s.admin), s.admin, id.RoleMinter))
	s.Require().NoError(s.access.Grant(s.as(s.admin), s.resolver, id.RoleDisputeResolver))

	s.identity = identityService.New(identityStore.NewInMemory(), s.access)
	s.compliance = complianceService.New(complianceStore.NewInMemory(), s.identity, s.access)
	s.assets = assetService.New(assetStore.NewInMemory(), s.compliance, s.identity, s.access)

	s.service = New(s.store, s.ledger, s.assets, s.compliance, s.access, s.operator,
		WithPublisher(publisher),
		WithMaxListingExpiry(60*24*time.Hour),
		WithCompletionWindow(7*24*time.Hour),
		WithFeeCap(1_000),
	)

	s.Require().NoError(s.identity.AddIssuer(s.as(s.admin), s.issuer, id.DefaultRequiredTopics))
	s.verifyAccount(s.seller, "US")
	s.verifyAccount(s.buyer, "DE")
	s.Require().NoError(s.compliance.SetCountryAllowed(s.as(s.admin), "US", true))
	s.Require().NoError(s.compliance.SetCountryAllowed(s.as(s.admin), "DE", true))
}

// as builds a context with the actor set and the suite clock applied.
func (s *ExchangeServiceSuite) as(account id.AccountID) context.Context {
	return s.at(account, s.now)
}

func (s *ExchangeServiceSuite) at(account id.AccountID, t time.Time) context.Context {
	ctx := requestcontext.WithActor(context.Background(), account)
	return requestcontext.WithTime(ctx, t)
}

func (s *ExchangeServiceSuite) verifyAccount(account id.AccountID, jurisdiction id.Jurisdiction) {
	s.Require().NoError(s.identity.Register(s.as(s.admin), account, jurisdiction))
	for _, topic := range id.DefaultRequiredTopics {
		_, err := s.identity.AddClaim(s.as(s.issuer), account, topic, 1, nil, nil, "")
		s.Require().NoError(err)
	}
}

// mintAndList mints a unit to the seller, approves the exchange operator,
// and lists it at the given price.
func (s *ExchangeServiceSuite) mintAndList(price uint64) (id.AssetID, id.ListingID) {
	assetID, err := s.assets.Mint(s.as(s.admin), s.seller, "ipfs://unit", "LEI-1", nil)
	s.Require().NoError(err)
	s.Require().NoError(s.assets.Approve(s.as(s.seller), assetID, s.operator))

	listingID, err := s.service.List(s.as(s.seller), assetID, price, 30*24*time.Hour, "one unit")
	s.Require().NoError(err)
	return assetID, listingID
}

// =============================================================================
// Listing Tests
// =============================================================================

func (s *ExchangeServiceSuite) TestList() {
	assetID, err := s.assets.Mint(s.as(s.admin), s.seller, "ipfs://unit", "", nil)
	s.Require().NoError(err)

	s.Run("listing requires operator approval", func() {
		_, err := s.service.List(s.as(s.seller), assetID, 1000, 24*time.Hour, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Require().NoError(s.assets.Approve(s.as(s.seller), assetID, s.operator))

	s.Run("non-owner cannot list", func() {
		_, err := s.service.List(s.as(s.buyer), assetID, 1000, 24*time.Hour, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("zero price is invalid", func() {
		_, err := s.service.List(s.as(s.seller), assetID, 0, 24*time.Hour, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("price beyond the fee arithmetic bound is invalid", func() {
		_, err := s.service.List(s.as(s.seller), assetID, math.MaxUint64, 24*time.Hour, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("expiry beyond the window is invalid", func() {
		_, err := s.service.List(s.as(s.seller), assetID, 1000, 365*24*time.Hour, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("owner lists an approved asset", func() {
		listingID, err := s.service.List(s.as(s.seller), assetID, 1000, 30*24*time.Hour, "one unit")
		s.NoError(err)

		listing, err := s.service.GetListing(s.as(s.seller), listingID)
		s.NoError(err)
		s.Equal(models.ListingActive, listing.Status)
		s.Equal(uint64(1000), listing.Price)
	})

	s.Run("an asset cannot carry two live listings", func() {
		_, err := s.service.List(s.as(s.seller), assetID, 2000, 24*time.Hour, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ExchangeServiceSuite) TestListingMutations() {
	_, listingID := s.mintAndList(1000)

	s.Run("seller updates price", func() {
		s.NoError(s.service.UpdatePrice(s.as(s.seller), listingID, 1500))

		listing, err := s.service.GetListing(s.as(s.seller), listingID)
		s.NoError(err)
		s.Equal(uint64(1500), listing.Price)
	})

	s.Run("non-seller cannot modify", func() {
		err := s.service.UpdatePrice(s.as(s.buyer), listingID, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("price update beyond the fee arithmetic bound is invalid", func() {
		err := s.service.UpdatePrice(s.as(s.seller), listingID, math.MaxUint64)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("extend within the window", func() {
		s.NoError(s.service.Extend(s.as(s.seller), listingID, 10*24*time.Hour))
	})

	s.Run("extend past the window fails", func() {
		err := s.service.Extend(s.as(s.seller), listingID, 100*24*time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("expired listing cannot be modified", func() {
		late := s.now.Add(80 * 24 * time.Hour)
		err := s.service.UpdatePrice(s.at(s.seller, late), listingID, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		listing, err2 := s.service.GetListing(s.at(s.seller, late), listingID)
		s.NoError(err2)
		s.Equal(models.ListingExpired, listing.Status)
	})

	s.Run("delist a live listing", func() {
		_, other := s.mintAndList(500)
		s.NoError(s.service.Delist(s.as(s.seller), other))

		listing, err := s.service.GetListing(s.as(s.seller), other)
		s.NoError(err)
		s.Equal(models.ListingCancelled, listing.Status)
	})
}

func (s *ExchangeServiceSuite) TestDelistBatch() {
	_, first := s.mintAndList(500)
	_, second := s.mintAndList(700)

	s.Run("empty batch is invalid", func() {
		err := s.service.DelistBatch(s.as(s.seller), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("a non-seller entry fails the whole batch", func() {
		err := s.service.DelistBatch(s.as(s.buyer), []id.ListingID{first, second})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		listing, err2 := s.service.GetListing(s.as(s.seller), first)
		s.NoError(err2)
		s.Equal(models.ListingActive, listing.Status)
	})

	s.Run("a cancelled entry fails the whole batch and delists nothing", func() {
		s.Require().NoError(s.service.Delist(s.as(s.seller), second))

		err := s.service.DelistBatch(s.as(s.seller), []id.ListingID{first, second})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		listing, err2 := s.service.GetListing(s.as(s.seller), first)
		s.NoError(err2)
		s.Equal(models.ListingActive, listing.Status)
	})

	s.Run("seller delists the remaining batch", func() {
		_, third := s.mintAndList(900)
		s.NoError(s.service.DelistBatch(s.as(s.seller), []id.ListingID{first, third}))

		for _, listingID := range []id.ListingID{first, third} {
			listing, err := s.service.GetListing(s.as(s.seller), listingID)
			s.NoError(err)
			s.Equal(models.ListingCancelled, listing.Status)
		}
	})
}

// =============================================================================
// Settlement Scenarios
// =============================================================================

func (s *ExchangeServiceSuite) TestHappyPathSettlement() {
	s.Require().NoError(s.access.Grant(s.as(s.admin), s.admin, id.RoleFeeManager))
	s.Require().NoError(s.service.UpdateFee(s.as(s.admin), 250, s.feeAcct))

	assetID, listingID := s.mintAndList(1000)

	escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1000)
	s.Require().NoError(err)

	listing, err := s.service.GetListing(s.as(s.buyer), listingID)
	s.Require().NoError(err)
	s.Equal(models.ListingSold, listing.Status)

	s.Require().NoError(s.service.CompletePurchase(s.as(s.buyer), escrowID))

	// floor(1000 * 250 / 10000) = 25
	sellerBalance, err := s.service.BalanceOf(context.Background(), s.seller)
	s.NoError(err)
	s.Equal(uint64(975), sellerBalance)

	feeBalance, err := s.service.BalanceOf(context.Background(), s.feeAcct)
	s.NoError(err)
	s.Equal(uint64(25), feeBalance)

	buyerBalance, err := s.service.BalanceOf(context.Background(), s.buyer)
	s.NoError(err)
	s.Equal(uint64(0), buyerBalance)

	owner, err := s.assets.OwnerOf(context.Background(), assetID)
	s.NoError(err)
	s.Equal(s.buyer, owner)

	escrow, err := s.service.GetEscrow(context.Background(), escrowID)
	s.NoError(err)
	s.Equal(models.EscrowCompleted, escrow.Status)

	listing, err = s.service.GetListing(s.as(s.buyer), listingID)
	s.NoError(err)
	s.Equal(models.ListingCompleted, listing.Status)

	stats, err := s.service.Stats(context.Background())
	s.NoError(err)
	s.Equal(uint64(1000), stats.Volume)
	s.Equal(uint64(1), stats.SaleCount)
	s.Equal(uint64(25), stats.FeesPaid)
}

func (s *ExchangeServiceSuite) TestSettlementRequiresIntactAsset() {
	s.Run("revoked approval blocks completion and pays nobody", func() {
		assetID, listingID := s.mintAndList(1000)
		escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1000)
		s.Require().NoError(err)

		s.Require().NoError(s.assets.RevokeApproval(s.as(s.seller), assetID))

		err = s.service.CompletePurchase(s.as(s.buyer), escrowID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		escrow, err2 := s.service.GetEscrow(context.Background(), escrowID)
		s.NoError(err2)
		s.Equal(models.EscrowFundsDeposited, escrow.Status)

		sellerBalance, err3 := s.service.BalanceOf(context.Background(), s.seller)
		s.NoError(err3)
		s.Equal(uint64(0), sellerBalance)

		owner, err4 := s.assets.OwnerOf(context.Background(), assetID)
		s.NoError(err4)
		s.Equal(s.seller, owner)

		// the deposit is still whole and refundable
		s.NoError(s.service.CancelPurchase(s.as(s.buyer), escrowID, "approval revoked"))
		buyerBalance, err5 := s.service.BalanceOf(context.Background(), s.buyer)
		s.NoError(err5)
		s.Equal(uint64(1000), buyerBalance)
	})

	s.Run("burned asset blocks completion", func() {
		assetID, listingID := s.mintAndList(2000)
		escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 2000)
		s.Require().NoError(err)

		s.Require().NoError(s.assets.Burn(s.as(s.seller), assetID))

		err = s.service.CompletePurchase(s.as(s.seller), escrowID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		escrow, err2 := s.service.GetEscrow(context.Background(), escrowID)
		s.NoError(err2)
		s.Equal(models.EscrowFundsDeposited, escrow.Status)
	})
}

func (s *ExchangeServiceSuite) TestRelistBlockedWhileEscrowOpen() {
	assetID, listingID := s.mintAndList(1000)
	escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1000)
	s.Require().NoError(err)

	s.Run("the sold listing still binds the asset", func() {
		_, err := s.service.List(s.as(s.seller), assetID, 2000, 24*time.Hour, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		_, err = s.service.GetEscrow(context.Background(), escrowID)
		s.NoError(err)
	})

	s.Run("completion closes the listing and frees the asset", func() {
		s.Require().NoError(s.service.CompletePurchase(s.as(s.buyer), escrowID))

		listing, err := s.service.GetListing(s.as(s.buyer), listingID)
		s.NoError(err)
		s.Equal(models.ListingCompleted, listing.Status)

		// approval does not survive the ownership change
		s.Require().NoError(s.assets.Approve(s.as(s.buyer), assetID, s.operator))
		_, err = s.service.List(s.as(s.buyer), assetID, 3000, 24*time.Hour, "")
		s.NoError(err)
	})
}

func (s *ExchangeServiceSuite) TestSurplusDepositRefundsToBuyer() {
	_, listingID := s.mintAndList(1000)

	escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1200)
	s.Require().NoError(err)
	s.Require().NoError(s.service.CompletePurchase(s.as(s.seller), escrowID))

	buyerBalance, err := s.service.BalanceOf(context.Background(), s.buyer)
	s.NoError(err)
	s.Equal(uint64(200), buyerBalance)

	sellerBalance, err := s.service.BalanceOf(context.Background(), s.seller)
	s.NoError(err)
	s.Equal(uint64(1000), sellerBalance)
}

func (s *ExchangeServiceSuite) TestInitiateRejections() {
	_, listingID := s.mintAndList(1000)

	s.Run("buyer jurisdiction not allowed", func() {
		s.Require().NoError(s.compliance.SetCountryAllowed(s.as(s.admin), "DE", false))
		defer func() {
			s.Require().NoError(s.compliance.SetCountryAllowed(s.as(s.admin), "DE", true))
		}()

		_, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1000)
		s.True(dErrors.HasCode(err, dErrors.CodeComplianceRejected))
		s.Equal(complianceService.ReasonReceiverCountry, dErrors.MessageOf(err))

		// no escrow was created, the listing stays open
		listing, err2 := s.service.GetListing(s.as(s.buyer), listingID)
		s.NoError(err2)
		s.Equal(models.ListingActive, listing.Status)
	})

	s.Run("deposit below price", func() {
		_, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 999)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("seller cannot buy their own listing", func() {
		_, err := s.service.InitiatePurchase(s.as(s.seller), listingID, 1000)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("expired listing is closed lazily", func() {
		late := s.now.Add(40 * 24 * time.Hour)
		_, err := s.service.InitiatePurchase(s.at(s.buyer, late), listingID, 1000)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		listing, err2 := s.service.GetListing(s.at(s.buyer, late), listingID)
		s.NoError(err2)
		s.Equal(models.ListingExpired, listing.Status)
	})
}

func (s *ExchangeServiceSuite) TestSettlementRevalidatesCompliance() {
	_, listingID := s.mintAndList(1000)

	escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1000)
	s.Require().NoError(err)

	// buyer's jurisdiction is disallowed between initiation and settlement
	s.Require().NoError(s.compliance.SetCountryAllowed(s.as(s.admin), "DE", false))

	err = s.service.CompletePurchase(s.as(s.buyer), escrowID)
	s.True(dErrors.HasCode(err, dErrors.CodeComplianceRejected))
	s.Equal(complianceService.ReasonReceiverCountry, dErrors.MessageOf(err))

	// nothing settled: escrow still open, deposit still held
	escrow, err := s.service.GetEscrow(context.Background(), escrowID)
	s.NoError(err)
	s.Equal(models.EscrowFundsDeposited, escrow.Status)

	held, err := s.ledger.Held(context.Background(), escrowID)
	s.NoError(err)
	s.Equal(uint64(1000), held)
}

func (s *ExchangeServiceSuite) TestCompletionDeadline() {
	_, listingID := s.mintAndList(1000)
	escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1000)
	s.Require().NoError(err)

	late := s.now.Add(8 * 24 * time.Hour)
	err = s.service.CompletePurchase(s.at(s.buyer, late), escrowID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ExchangeServiceSuite) TestDepositFunds() {
	_, listingID := s.mintAndList(1000)
	escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1000)
	s.Require().NoError(err)

	s.Run("only the buyer may deposit", func() {
		err := s.service.DepositFunds(s.as(s.seller), escrowID, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("deposit tops up the hold", func() {
		s.NoError(s.service.DepositFunds(s.as(s.buyer), escrowID, 500))

		held, err := s.ledger.Held(context.Background(), escrowID)
		s.NoError(err)
		s.Equal(uint64(1500), held)

		escrow, err := s.service.GetEscrow(context.Background(), escrowID)
		s.NoError(err)
		s.Equal(uint64(1500), escrow.Deposited)
	})
}

// =============================================================================
// Cancellation and Dispute Tests
// =============================================================================

func (s *ExchangeServiceSuite) TestCancelPurchase() {
	assetID, listingID := s.mintAndList(1000)
	escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1100)
	s.Require().NoError(err)

	s.Run("stranger cannot cancel", func() {
		err := s.service.CancelPurchase(s.as(s.resolver), escrowID, "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("buyer cancels with a full refund and the listing reactivates", func() {
		s.NoError(s.service.CancelPurchase(s.as(s.buyer), escrowID, "changed my mind"))

		buyerBalance, err := s.service.BalanceOf(context.Background(), s.buyer)
		s.NoError(err)
		s.Equal(uint64(1100), buyerBalance)

		escrow, err := s.service.GetEscrow(context.Background(), escrowID)
		s.NoError(err)
		s.Equal(models.EscrowCancelled, escrow.Status)

		listing, err := s.service.GetListing(s.as(s.buyer), listingID)
		s.NoError(err)
		s.Equal(models.ListingActive, listing.Status)

		owner, err := s.assets.OwnerOf(context.Background(), assetID)
		s.NoError(err)
		s.Equal(s.seller, owner)
	})

	s.Run("cancelling twice conflicts", func() {
		err := s.service.CancelPurchase(s.as(s.buyer), escrowID, "again")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ExchangeServiceSuite) TestDisputes() {
	assetID, listingID := s.mintAndList(1000)
	escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1000)
	s.Require().NoError(err)

	s.Run("dispute requires a reason", func() {
		err := s.service.RaiseDispute(s.as(s.buyer), escrowID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("buyer raises a dispute", func() {
		s.NoError(s.service.RaiseDispute(s.as(s.buyer), escrowID, "asset not as described"))

		escrow, err := s.service.GetEscrow(context.Background(), escrowID)
		s.NoError(err)
		s.Equal(models.EscrowDisputed, escrow.Status)
		s.Equal(s.buyer, escrow.DisputedBy)
	})

	s.Run("disputed escrow cannot be completed or cancelled", func() {
		s.True(dErrors.HasCode(s.service.CompletePurchase(s.as(s.buyer), escrowID), dErrors.CodeConflict))
		s.True(dErrors.HasCode(s.service.CancelPurchase(s.as(s.buyer), escrowID, "x"), dErrors.CodeConflict))
	})

	s.Run("only one dispute per escrow", func() {
		err := s.service.RaiseDispute(s.as(s.seller), escrowID, "counter")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("non-resolver cannot resolve", func() {
		err := s.service.ResolveDispute(s.as(s.admin), escrowID, false)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("seller-wins resolution refunds the buyer and reactivates", func() {
		s.NoError(s.service.ResolveDispute(s.as(s.resolver), escrowID, false))

		buyerBalance, err := s.service.BalanceOf(context.Background(), s.buyer)
		s.NoError(err)
		s.Equal(uint64(1000), buyerBalance)

		escrow, err := s.service.GetEscrow(context.Background(), escrowID)
		s.NoError(err)
		s.Equal(models.EscrowCancelled, escrow.Status)

		listing, err := s.service.GetListing(s.as(s.buyer), listingID)
		s.NoError(err)
		s.Equal(models.ListingActive, listing.Status)

		owner, err := s.assets.OwnerOf(context.Background(), assetID)
		s.NoError(err)
		s.Equal(s.seller, owner)
	})
}

func (s *ExchangeServiceSuite) TestBuyerWinsResolution() {
	assetID, listingID := s.mintAndList(1000)
	escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1000)
	s.Require().NoError(err)
	s.Require().NoError(s.service.RaiseDispute(s.as(s.seller), escrowID, "payment concern"))

	s.Require().NoError(s.service.ResolveDispute(s.as(s.resolver), escrowID, true))

	owner, err := s.assets.OwnerOf(context.Background(), assetID)
	s.NoError(err)
	s.Equal(s.buyer, owner)

	sellerBalance, err := s.service.BalanceOf(context.Background(), s.seller)
	s.NoError(err)
	s.Equal(uint64(1000), sellerBalance)

	escrow, err := s.service.GetEscrow(context.Background(), escrowID)
	s.NoError(err)
	s.Equal(models.EscrowCompleted, escrow.Status)
}

// =============================================================================
// Pause and Fee Tests
// =============================================================================

func (s *ExchangeServiceSuite) TestPause() {
	_, listingID := s.mintAndList(1000)
	escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1000)
	s.Require().NoError(err)
	s.Require().NoError(s.service.RaiseDispute(s.as(s.buyer), escrowID, "issue"))

	_, heldListing := s.mintAndList(500)
	heldEscrow, err := s.service.InitiatePurchase(s.as(s.buyer), heldListing, 500)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Pause(s.as(s.admin)))

	s.Run("mutations are blocked while paused", func() {
		_, err := s.service.InitiatePurchase(s.as(s.buyer), heldListing, 500)
		s.True(dErrors.HasCode(err, dErrors.CodePaused))
		s.True(dErrors.HasCode(s.service.CompletePurchase(s.as(s.buyer), heldEscrow), dErrors.CodePaused))
		s.True(dErrors.HasCode(s.service.CancelPurchase(s.as(s.buyer), heldEscrow, "x"), dErrors.CodePaused))
	})

	s.Run("dispute resolution works while paused", func() {
		s.NoError(s.service.ResolveDispute(s.as(s.resolver), escrowID, false))
	})

	s.Run("emergency withdrawal works while paused", func() {
		s.NoError(s.service.EmergencyWithdraw(s.as(s.admin), heldEscrow))

		buyerBalance, err := s.service.BalanceOf(context.Background(), s.buyer)
		s.NoError(err)
		// refunds from both the resolution and the emergency withdrawal
		s.Equal(uint64(1500), buyerBalance)
	})

	s.Require().NoError(s.service.Unpause(s.as(s.admin)))
}

func (s *ExchangeServiceSuite) TestFeeConfig() {
	s.Run("fee above the cap is rejected", func() {
		err := s.service.UpdateFee(s.as(s.admin), 5_000, s.feeAcct)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("nonzero fee requires a recipient", func() {
		err := s.service.UpdateFee(s.as(s.admin), 100, id.NilAccount)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unprivileged caller is rejected", func() {
		err := s.service.UpdateFee(s.as(s.buyer), 100, s.feeAcct)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("fee is read at settlement time", func() {
		_, listingID := s.mintAndList(1000)
		escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, 1000)
		s.Require().NoError(err)

		// rate changes after initiation; settlement uses the new rate
		s.Require().NoError(s.service.UpdateFee(s.as(s.admin), 100, s.feeAcct))
		s.Require().NoError(s.service.CompletePurchase(s.as(s.buyer), escrowID))

		feeBalance, err := s.service.BalanceOf(context.Background(), s.feeAcct)
		s.NoError(err)
		s.Equal(uint64(10), feeBalance)
	})
}
