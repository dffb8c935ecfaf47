package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	accessService "provena/internal/access/service"
	accessStore "provena/internal/access/store"
	"provena/internal/events"
	eventsMemory "provena/internal/events/store/memory"
	identityStore "provena/internal/identity/store"
	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
	"provena/pkg/requestcontext"
)

// =============================================================================
// Identity Service Test Suite
// =============================================================================
// Justification for unit tests: registration gating, claim issuance authority,
// and derived verification status combine the role table with the issuer
// registry; exercising those combinations over HTTP would drown the cases in
// transport setup.

type IdentityServiceSuite struct {
	suite.Suite
	store    *identityStore.InMemory
	events   *eventsMemory.Store
	access   *accessService.Service
	service  *Service
	admin    id.AccountID
	agent    id.AccountID
	issuer   id.AccountID
	investor id.AccountID
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.admin = id.AccountID("acct-admin")
	s.agent = id.AccountID("acct-agent")
	s.issuer = id.AccountID("acct-issuer")
	s.investor = id.AccountID("acct-investor")

	s.store = identityStore.NewInMemory()
	s.events = eventsMemory.New()
	publisher := events.NewPublisher(s.events)

	s.access = accessService.New(accessStore.NewInMemory(), accessService.WithPublisher(publisher))
	ctx := context.Background()
	s.Require().NoError(s.access.Bootstrap(ctx, s.admin))
	s.Require().NoError(s.access.Grant(s.asAdmin(), s.agent, id.RoleAgent))

	s.service = New(s.store, s.access, WithPublisher(publisher))
}

func (s *IdentityServiceSuite) asAdmin() context.Context {
	return requestcontext.WithActor(context.Background(), s.admin)
}

func (s *IdentityServiceSuite) asAgent() context.Context {
	return requestcontext.WithActor(context.Background(), s.agent)
}

func (s *IdentityServiceSuite) as(account id.AccountID) context.Context {
	return requestcontext.WithActor(context.Background(), account)
}

func (s *IdentityServiceSuite) registerInvestor() {
	s.Require().NoError(s.service.Register(s.asAgent(), s.investor, id.Jurisdiction("US")))
}

func (s *IdentityServiceSuite) addIssuer(topics ...id.ClaimTopic) {
	s.Require().NoError(s.service.AddIssuer(s.asAdmin(), s.issuer, topics))
}

// =============================================================================
// Registration Tests
// =============================================================================

func (s *IdentityServiceSuite) TestRegister() {
	s.Run("agent registers an identity", func() {
		err := s.service.Register(s.asAgent(), s.investor, id.Jurisdiction("US"))
		s.NoError(err)

		identity, err := s.service.Get(context.Background(), s.investor)
		s.NoError(err)
		s.Equal(id.Jurisdiction("US"), identity.Jurisdiction)

		recorded, err := s.events.ListByAction(context.Background(), events.ActionIdentityRegistered)
		s.Require().NoError(err)
		s.Require().Len(recorded, 1)
		s.Equal(s.investor, recorded[0].Account)
		s.Equal("US", recorded[0].Detail)
	})

	s.Run("duplicate registration conflicts", func() {
		err := s.service.Register(s.asAgent(), s.investor, id.Jurisdiction("GB"))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unprivileged caller is rejected", func() {
		err := s.service.Register(s.as(s.investor), id.AccountID("acct-other"), id.Jurisdiction("US"))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("anonymous caller is rejected", func() {
		err := s.service.Register(context.Background(), id.AccountID("acct-other"), id.Jurisdiction("US"))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *IdentityServiceSuite) TestRegisterBatch() {
	s.Run("registers all entries", func() {
		err := s.service.RegisterBatch(s.asAgent(), []Registration{
			{Account: id.AccountID("acct-1"), Jurisdiction: id.Jurisdiction("US")},
			{Account: id.AccountID("acct-2"), Jurisdiction: id.Jurisdiction("DE")},
		})
		s.NoError(err)

		for _, account := range []id.AccountID{"acct-1", "acct-2"} {
			ok, err := s.service.IsRegistered(context.Background(), account)
			s.NoError(err)
			s.True(ok)
		}
	})

	s.Run("skips entries that already exist", func() {
		err := s.service.RegisterBatch(s.asAgent(), []Registration{
			{Account: id.AccountID("acct-1"), Jurisdiction: id.Jurisdiction("FR")},
			{Account: id.AccountID("acct-3"), Jurisdiction: id.Jurisdiction("FR")},
		})
		s.NoError(err)

		// acct-1 keeps its original jurisdiction
		identity, err := s.service.Get(context.Background(), id.AccountID("acct-1"))
		s.NoError(err)
		s.Equal(id.Jurisdiction("US"), identity.Jurisdiction)

		ok, err := s.service.IsRegistered(context.Background(), id.AccountID("acct-3"))
		s.NoError(err)
		s.True(ok)
	})
}

func (s *IdentityServiceSuite) TestDelete() {
	s.registerInvestor()
	s.addIssuer(id.ClaimTopicKYC, id.ClaimTopicAML)

	s.Run("removes the identity and its claims", func() {
		claimID, err := s.service.AddClaim(s.as(s.issuer), s.investor, id.ClaimTopicKYC, 1, []byte("sig"), []byte("data"), "")
		s.Require().NoError(err)

		s.NoError(s.service.Delete(s.asAgent(), s.investor))

		_, err = s.service.Get(context.Background(), s.investor)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		_, err = s.service.GetClaim(context.Background(), s.investor, claimID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown account is not found", func() {
		err := s.service.Delete(s.asAgent(), id.AccountID("acct-ghost"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *IdentityServiceSuite) TestSetJurisdiction() {
	s.registerInvestor()

	s.Run("updates the home jurisdiction", func() {
		ctx := requestcontext.WithTime(s.asAgent(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
		s.NoError(s.service.SetJurisdiction(ctx, s.investor, id.Jurisdiction("CH")))

		identity, err := s.service.Get(context.Background(), s.investor)
		s.NoError(err)
		s.Equal(id.Jurisdiction("CH"), identity.Jurisdiction)
		s.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), identity.UpdatedAt)
	})

	s.Run("empty jurisdiction is rejected", func() {
		err := s.service.SetJurisdiction(s.asAgent(), s.investor, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Claim Tests
// =============================================================================

func (s *IdentityServiceSuite) TestAddClaim() {
	s.registerInvestor()
	s.addIssuer(id.ClaimTopicKYC)

	s.Run("authorized issuer attaches a claim", func() {
		claimID, err := s.service.AddClaim(s.as(s.issuer), s.investor, id.ClaimTopicKYC, 1, []byte("sig"), []byte("data"), "ipfs://claim")
		s.NoError(err)
		s.False(claimID.IsNil())

		claim, err := s.service.GetClaim(context.Background(), s.investor, claimID)
		s.NoError(err)
		s.Equal(s.issuer, claim.Issuer)
		s.Equal(id.ClaimTopicKYC, claim.Topic)
	})

	s.Run("issuer without the topic is forbidden", func() {
		_, err := s.service.AddClaim(s.as(s.issuer), s.investor, id.ClaimTopicAML, 1, nil, nil, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("non-issuer is forbidden", func() {
		_, err := s.service.AddClaim(s.asAdmin(), s.investor, id.ClaimTopicKYC, 1, nil, nil, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unregistered subject is not found", func() {
		_, err := s.service.AddClaim(s.as(s.issuer), id.AccountID("acct-ghost"), id.ClaimTopicKYC, 1, nil, nil, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown topic is rejected", func() {
		_, err := s.service.AddClaim(s.as(s.issuer), s.investor, id.ClaimTopic("astrology"), 1, nil, nil, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *IdentityServiceSuite) TestRemoveClaim() {
	s.registerInvestor()
	s.addIssuer(id.ClaimTopicKYC)

	claimID, err := s.service.AddClaim(s.as(s.issuer), s.investor, id.ClaimTopicKYC, 1, []byte("sig"), nil, "")
	s.Require().NoError(err)

	s.Run("non-issuing caller is forbidden", func() {
		err := s.service.RemoveClaim(s.asAdmin(), s.investor, claimID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("issuing account removes its claim", func() {
		s.NoError(s.service.RemoveClaim(s.as(s.issuer), s.investor, claimID))

		_, err := s.service.GetClaim(context.Background(), s.investor, claimID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("removing twice is not found", func() {
		err := s.service.RemoveClaim(s.as(s.issuer), s.investor, claimID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Verification Tests
// =============================================================================

func (s *IdentityServiceSuite) TestIsVerified() {
	s.registerInvestor()
	s.addIssuer(id.ClaimTopicKYC, id.ClaimTopicAML)

	s.Run("registered without claims is not verified", func() {
		ok, err := s.service.IsVerified(context.Background(), s.investor)
		s.NoError(err)
		s.False(ok)
	})

	s.Run("partial topic coverage is not verified", func() {
		_, err := s.service.AddClaim(s.as(s.issuer), s.investor, id.ClaimTopicKYC, 1, nil, nil, "")
		s.Require().NoError(err)

		ok, err := s.service.IsVerified(context.Background(), s.investor)
		s.NoError(err)
		s.False(ok)
	})

	s.Run("full topic coverage is verified", func() {
		_, err := s.service.AddClaim(s.as(s.issuer), s.investor, id.ClaimTopicAML, 1, nil, nil, "")
		s.Require().NoError(err)

		ok, err := s.service.IsVerified(context.Background(), s.investor)
		s.NoError(err)
		s.True(ok)
	})

	s.Run("verification drops when a required claim is removed", func() {
		claims, err := s.service.ClaimsByTopic(context.Background(), s.investor, id.ClaimTopicAML)
		s.Require().NoError(err)
		s.Require().Len(claims, 1)

		s.Require().NoError(s.service.RemoveClaim(s.as(s.issuer), s.investor, claims[0].ID))

		ok, err := s.service.IsVerified(context.Background(), s.investor)
		s.NoError(err)
		s.False(ok)
	})

	s.Run("unregistered account is not verified", func() {
		ok, err := s.service.IsVerified(context.Background(), id.AccountID("acct-ghost"))
		s.NoError(err)
		s.False(ok)
	})
}

// =============================================================================
// Issuer Registry Tests
// =============================================================================

func (s *IdentityServiceSuite) TestIssuerManagement() {
	s.Run("admin registers an issuer", func() {
		s.NoError(s.service.AddIssuer(s.asAdmin(), s.issuer, []id.ClaimTopic{id.ClaimTopicKYC}))

		topics, err := s.service.IssuerTopics(context.Background(), s.issuer)
		s.NoError(err)
		s.Equal([]id.ClaimTopic{id.ClaimTopicKYC}, topics)
	})

	s.Run("duplicate issuer conflicts", func() {
		err := s.service.AddIssuer(s.asAdmin(), s.issuer, []id.ClaimTopic{id.ClaimTopicAML})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("non-admin cannot manage issuers", func() {
		err := s.service.AddIssuer(s.asAgent(), id.AccountID("acct-other"), []id.ClaimTopic{id.ClaimTopicKYC})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("grant and revoke topics", func() {
		s.NoError(s.service.GrantTopic(s.asAdmin(), s.issuer, id.ClaimTopicAML))
		s.NoError(s.service.RevokeTopic(s.asAdmin(), s.issuer, id.ClaimTopicKYC))

		topics, err := s.service.IssuerTopics(context.Background(), s.issuer)
		s.NoError(err)
		s.Equal([]id.ClaimTopic{id.ClaimTopicAML}, topics)
	})

	s.Run("revoking an ungranted topic fails", func() {
		err := s.service.RevokeTopic(s.asAdmin(), s.issuer, id.ClaimTopicKYC)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("removed issuer leaves issued claims in place", func() {
		s.registerInvestor()
		claimID, err := s.service.AddClaim(s.as(s.issuer), s.investor, id.ClaimTopicAML, 1, nil, nil, "")
		s.Require().NoError(err)

		s.NoError(s.service.RemoveIssuer(s.asAdmin(), s.issuer))

		claim, err := s.service.GetClaim(context.Background(), s.investor, claimID)
		s.NoError(err)
		s.Equal(s.issuer, claim.Issuer)

		_, err = s.service.AddClaim(s.as(s.issuer), s.investor, id.ClaimTopicAML, 1, nil, nil, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
