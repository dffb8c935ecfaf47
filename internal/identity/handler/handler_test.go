package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	accessService "provena/internal/access/service"
	accessStore "provena/internal/access/store"
	"provena/internal/authtoken"
	identityService "provena/internal/identity/service"
	identityStore "provena/internal/identity/store"
	"provena/internal/platform/middleware"
	id "provena/pkg/domain"
	"provena/pkg/requestcontext"
)

// =============================================================================
// Identity Handler Test Suite
// =============================================================================
// Handler tests validate transport concerns: parsing, auth wiring, and
// response mapping. Real stores and services, no mocks.

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	tokens *authtoken.Service

	admin  id.AccountID
	issuer id.AccountID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.admin = id.AccountID("acct-admin")
	s.issuer = id.AccountID("acct-issuer")

	access := accessService.New(accessStore.NewInMemory())
	ctx := context.Background()
	s.Require().NoError(access.Bootstrap(ctx, s.admin))
	s.Require().NoError(access.Grant(s.asService(s.admin), s.admin, id.RoleAgent))

	identity := identityService.New(identityStore.NewInMemory(), access)
	s.Require().NoError(identity.AddIssuer(s.asService(s.admin), s.issuer, id.DefaultRequiredTopics))

	s.tokens = authtoken.NewService("test-signing-key", "provena", "provena-api")
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.RequireAuth(s.tokens, logger))
	New(identity, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) asService(account id.AccountID) context.Context {
	return requestcontext.WithActor(context.Background(), account)
}

// request performs an authenticated JSON request as the given account.
func (s *HandlerSuite) request(account id.AccountID, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	token, err := s.tokens.GenerateToken(account, time.Minute)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestRegisterRequiresToken() {
	raw, _ := json.Marshal(map[string]string{"account": "acct-1", "jurisdiction": "US"})
	req := httptest.NewRequest(http.MethodPost, "/identities", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestRegisterAndGet() {
	rec := s.request(s.admin, http.MethodPost, "/identities",
		map[string]string{"account": "acct-1", "jurisdiction": "US"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.request(s.admin, http.MethodGet, "/identities/acct-1", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var body map[string]any
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Equal("acct-1", body["account"])
	s.Equal("US", body["jurisdiction"])
	s.Equal(false, body["verified"])
}

func (s *HandlerSuite) TestRegisterValidation() {
	s.Run("invalid JSON", func() {
		req := httptest.NewRequest(http.MethodPost, "/identities", bytes.NewReader([]byte("not json")))
		req.Header.Set("Content-Type", "application/json")
		token, err := s.tokens.GenerateToken(s.admin, time.Minute)
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)

		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("empty jurisdiction", func() {
		rec := s.request(s.admin, http.MethodPost, "/identities",
			map[string]string{"account": "acct-2"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("non-agent caller gets 403", func() {
		rec := s.request(id.AccountID("acct-nobody"), http.MethodPost, "/identities",
			map[string]string{"account": "acct-2", "jurisdiction": "US"})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("duplicate registration gets 409", func() {
		first := s.request(s.admin, http.MethodPost, "/identities",
			map[string]string{"account": "acct-dup", "jurisdiction": "US"})
		s.Require().Equal(http.StatusCreated, first.Code)

		second := s.request(s.admin, http.MethodPost, "/identities",
			map[string]string{"account": "acct-dup", "jurisdiction": "US"})
		s.Equal(http.StatusConflict, second.Code)

		var body map[string]string
		s.Require().NoError(json.NewDecoder(second.Body).Decode(&body))
		s.Equal("conflict", body["error"])
	})
}

func (s *HandlerSuite) TestClaimLifecycle() {
	rec := s.request(s.admin, http.MethodPost, "/identities",
		map[string]string{"account": "acct-1", "jurisdiction": "US"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	var claimID string
	s.Run("issuer adds a claim", func() {
		rec := s.request(s.issuer, http.MethodPost, "/identities/acct-1/claims",
			map[string]any{"topic": "kyc", "scheme": 1})
		s.Require().Equal(http.StatusCreated, rec.Code)

		var body map[string]string
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
		claimID = body["claim_id"]
		s.NotEmpty(claimID)
	})

	s.Run("claims list filters by topic", func() {
		rec := s.request(s.admin, http.MethodGet, "/identities/acct-1/claims?topic=kyc", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var body struct {
			Claims []json.RawMessage `json:"claims"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
		s.Len(body.Claims, 1)
	})

	s.Run("unknown topic is rejected", func() {
		rec := s.request(s.issuer, http.MethodPost, "/identities/acct-1/claims",
			map[string]any{"topic": "zodiac-sign", "scheme": 1})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("only the issuing party removes the claim", func() {
		rec := s.request(s.admin, http.MethodDelete,
			fmt.Sprintf("/identities/acct-1/claims/%s", claimID), nil)
		s.Equal(http.StatusForbidden, rec.Code)

		rec = s.request(s.issuer, http.MethodDelete,
			fmt.Sprintf("/identities/acct-1/claims/%s", claimID), nil)
		s.Equal(http.StatusNoContent, rec.Code)
	})
}

func (s *HandlerSuite) TestVerifiedFlagTracksRequiredTopics() {
	rec := s.request(s.admin, http.MethodPost, "/identities",
		map[string]string{"account": "acct-1", "jurisdiction": "US"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	for _, topic := range id.DefaultRequiredTopics {
		rec := s.request(s.issuer, http.MethodPost, "/identities/acct-1/claims",
			map[string]any{"topic": topic.String(), "scheme": 1})
		s.Require().Equal(http.StatusCreated, rec.Code)
	}

	rec = s.request(s.admin, http.MethodGet, "/identities/acct-1", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var body map[string]any
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Equal(true, body["verified"])
}
