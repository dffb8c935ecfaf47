package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	accessService "provena/internal/access/service"
	accessStore "provena/internal/access/store"
	complianceModels "provena/internal/compliance/models"
	"provena/internal/exchange/funds"
	"provena/internal/exchange/models"
	"provena/internal/exchange/service/mocks"
	exchangeStore "provena/internal/exchange/store"
	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
	"provena/pkg/requestcontext"
)

// =============================================================================
// Settlement Ordering Tests
// =============================================================================
// Justification for unit tests: the safety property of settlement is
// sequencing across three collaborators. Mocks let us pin the order and
// inject failures at each boundary, which the in-memory stack cannot do.

type SettlementOrderingSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	assets *mocks.MockAssetRegistry
	comp   *mocks.MockCompliance
	ledger *mocks.MockFundsLedger
	store  *exchangeStore.InMemory

	service *Service
	now     time.Time

	operator id.AccountID
	seller   id.AccountID
	buyer    id.AccountID
}

func TestSettlementOrderingSuite(t *testing.T) {
	suite.Run(t, new(SettlementOrderingSuite))
}

func (s *SettlementOrderingSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.assets = mocks.NewMockAssetRegistry(s.ctrl)
	s.comp = mocks.NewMockCompliance(s.ctrl)
	s.ledger = mocks.NewMockFundsLedger(s.ctrl)
	s.store = exchangeStore.NewInMemory()

	s.now = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.operator = id.AccountID("acct-exchange")
	s.seller = id.AccountID("acct-seller")
	s.buyer = id.AccountID("acct-buyer")

	access := accessService.New(accessStore.NewInMemory())

	s.service = New(s.store, s.ledger, s.assets, s.comp, access, s.operator)
}

func (s *SettlementOrderingSuite) as(account id.AccountID) context.Context {
	ctx := requestcontext.WithActor(context.Background(), account)
	return requestcontext.WithTime(ctx, s.now)
}

// openEscrow drives a listing and purchase through the service so the store
// holds a real escrow in the deposited state.
func (s *SettlementOrderingSuite) openEscrow(price, deposit uint64) id.EscrowID {
	assetID := id.AssetID(1)
	s.assets.EXPECT().OwnerOf(gomock.Any(), assetID).Return(s.seller, nil)
	s.assets.EXPECT().IsApprovedFor(gomock.Any(), assetID, s.operator).Return(true, nil)
	listingID, err := s.service.List(s.as(s.seller), assetID, price, 24*time.Hour, "")
	s.Require().NoError(err)

	s.comp.EXPECT().CanTransferAsset(gomock.Any(), s.seller, s.buyer).Return(complianceModels.Allowed(), nil)
	s.ledger.EXPECT().Hold(gomock.Any(), gomock.Any(), deposit).Return(nil)
	escrowID, err := s.service.InitiatePurchase(s.as(s.buyer), listingID, deposit)
	s.Require().NoError(err)
	return escrowID
}

func (s *SettlementOrderingSuite) TestSettlementSequence() {
	escrowID := s.openEscrow(1000, 1200)

	// preconditions run first (ownership, approval, compliance), then
	// disbursal, then the ownership transfer last
	ownerCheck := s.assets.EXPECT().
		OwnerOf(gomock.Any(), id.AssetID(1)).
		Return(s.seller, nil)
	approvalCheck := s.assets.EXPECT().
		IsApprovedFor(gomock.Any(), id.AssetID(1), s.operator).
		Return(true, nil)
	validate := s.comp.EXPECT().
		ValidateTransfer(gomock.Any(), s.seller, s.buyer, uint64(1)).
		Return(complianceModels.Allowed(), nil)
	disburse := s.ledger.EXPECT().
		Disburse(gomock.Any(), escrowID, gomock.Any()).
		Return(nil)
	transfer := s.assets.EXPECT().
		Transfer(gomock.Any(), id.AssetID(1), s.buyer).
		DoAndReturn(func(ctx context.Context, _ id.AssetID, _ id.AccountID) error {
			// ownership moves under the operator account
			s.Equal(s.operator, requestcontext.Actor(ctx))
			return nil
		})
	gomock.InOrder(ownerCheck, approvalCheck, validate, disburse, transfer)

	s.Require().NoError(s.service.CompletePurchase(s.as(s.buyer), escrowID))

	escrow, err := s.service.GetEscrow(context.Background(), escrowID)
	s.NoError(err)
	s.Equal(models.EscrowCompleted, escrow.Status)
}

// expectAssetIntact stubs the settlement precondition reads for an asset
// the seller still holds with the operator approval in place.
func (s *SettlementOrderingSuite) expectAssetIntact(assetID id.AssetID) {
	s.assets.EXPECT().OwnerOf(gomock.Any(), assetID).Return(s.seller, nil)
	s.assets.EXPECT().IsApprovedFor(gomock.Any(), assetID, s.operator).Return(true, nil)
}

func (s *SettlementOrderingSuite) TestRevokedApprovalStopsSettlement() {
	escrowID := s.openEscrow(1000, 1000)

	s.assets.EXPECT().OwnerOf(gomock.Any(), id.AssetID(1)).Return(s.seller, nil)
	s.assets.EXPECT().IsApprovedFor(gomock.Any(), id.AssetID(1), s.operator).Return(false, nil)
	// no ValidateTransfer, no Disburse, no Transfer

	err := s.service.CompletePurchase(s.as(s.buyer), escrowID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	escrow, err2 := s.service.GetEscrow(context.Background(), escrowID)
	s.NoError(err2)
	s.Equal(models.EscrowFundsDeposited, escrow.Status)
}

func (s *SettlementOrderingSuite) TestOwnershipChangeStopsSettlement() {
	escrowID := s.openEscrow(1000, 1000)

	s.assets.EXPECT().OwnerOf(gomock.Any(), id.AssetID(1)).Return(id.AccountID("acct-other"), nil)
	// no approval check, no ValidateTransfer, no Disburse, no Transfer

	err := s.service.CompletePurchase(s.as(s.buyer), escrowID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *SettlementOrderingSuite) TestRevalidationFailureStopsSettlement() {
	escrowID := s.openEscrow(1000, 1000)

	s.expectAssetIntact(id.AssetID(1))
	s.comp.EXPECT().
		ValidateTransfer(gomock.Any(), s.seller, s.buyer, uint64(1)).
		Return(complianceModels.Rejected(complianceModels.RejectUnverifiedParty, "Receiver not verified"), nil)
	// no Disburse, no Transfer

	err := s.service.CompletePurchase(s.as(s.buyer), escrowID)
	s.True(dErrors.HasCode(err, dErrors.CodeComplianceRejected))

	escrow, err2 := s.service.GetEscrow(context.Background(), escrowID)
	s.NoError(err2)
	s.Equal(models.EscrowFundsDeposited, escrow.Status)
}

func (s *SettlementOrderingSuite) TestDisburseFailureStopsTransfer() {
	escrowID := s.openEscrow(1000, 1000)

	s.expectAssetIntact(id.AssetID(1))
	s.comp.EXPECT().
		ValidateTransfer(gomock.Any(), s.seller, s.buyer, uint64(1)).
		Return(complianceModels.Allowed(), nil)
	s.ledger.EXPECT().
		Disburse(gomock.Any(), escrowID, gomock.Any()).
		Return(dErrors.New(dErrors.CodeInvariantViolation, "payouts do not match the hold"))
	// no Transfer

	err := s.service.CompletePurchase(s.as(s.buyer), escrowID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *SettlementOrderingSuite) TestDisbursalSplitsPriceFeeAndSurplus() {
	feeAcct := id.AccountID("acct-fees")
	access := accessService.New(accessStore.NewInMemory())
	admin := id.AccountID("acct-admin")
	s.Require().NoError(access.Bootstrap(context.Background(), admin))

	s.service = New(s.store, s.ledger, s.assets, s.comp, access, s.operator)
	s.Require().NoError(s.service.UpdateFee(s.as(admin), 250, feeAcct))

	escrowID := s.openEscrow(1000, 1300)

	s.expectAssetIntact(id.AssetID(1))
	s.comp.EXPECT().
		ValidateTransfer(gomock.Any(), s.seller, s.buyer, uint64(1)).
		Return(complianceModels.Allowed(), nil)
	s.ledger.EXPECT().
		Disburse(gomock.Any(), escrowID, []funds.Payout{
			{To: s.seller, Amount: 975},
			{To: feeAcct, Amount: 25},
			{To: s.buyer, Amount: 300},
		}).
		Return(nil)
	s.assets.EXPECT().Transfer(gomock.Any(), id.AssetID(1), s.buyer).Return(nil)

	s.Require().NoError(s.service.CompletePurchase(s.as(s.buyer), escrowID))

	stats, err := s.service.Stats(context.Background())
	s.NoError(err)
	s.Equal(uint64(1000), stats.Volume)
	s.Equal(uint64(25), stats.FeesPaid)
}

func (s *SettlementOrderingSuite) TestUnwindRefundsAfterStateCommit() {
	escrowID := s.openEscrow(1000, 1000)

	s.ledger.EXPECT().
		Refund(gomock.Any(), escrowID, s.buyer).
		DoAndReturn(func(ctx context.Context, eid id.EscrowID, _ id.AccountID) (uint64, error) {
			// the escrow record is already cancelled when the refund runs
			escrow, err := s.store.GetEscrow(ctx, eid)
			s.Require().NoError(err)
			s.Equal(models.EscrowCancelled, escrow.Status)
			return 1000, nil
		})

	s.Require().NoError(s.service.CancelPurchase(s.as(s.buyer), escrowID, "changed my mind"))

	listing, err := s.service.ActiveListings(s.as(s.buyer))
	s.NoError(err)
	s.Len(listing, 1)
}
