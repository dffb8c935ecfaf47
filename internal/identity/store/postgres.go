package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"provena/internal/identity/models"
	id "provena/pkg/domain"
	"provena/pkg/platform/sentinel"
)

// Schema is the DDL the postgres store expects.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
	account       TEXT PRIMARY KEY,
	jurisdiction  TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS identity_claims (
	id        UUID PRIMARY KEY,
	account   TEXT NOT NULL REFERENCES identities(account) ON DELETE CASCADE,
	topic     TEXT NOT NULL,
	issuer    TEXT NOT NULL,
	scheme    BIGINT NOT NULL,
	signature BYTEA,
	data      BYTEA,
	uri       TEXT NOT NULL DEFAULT '',
	issued_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS identity_claims_topic_idx ON identity_claims (account, topic);
CREATE TABLE IF NOT EXISTS claim_issuers (
	account  TEXT PRIMARY KEY,
	topics   TEXT[] NOT NULL,
	added_at TIMESTAMPTZ NOT NULL
);
`

// Postgres persists identities, claims, and issuers with pgx. Claim cascade
// on identity deletion is delegated to the foreign key.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Postgres) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO identities (account, jurisdiction, registered_at, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		identity.Account.String(), identity.Jurisdiction.String(), identity.RegisteredAt, identity.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	return err
}

func (s *Postgres) GetIdentity(ctx context.Context, account id.AccountID) (*models.Identity, error) {
	var identity models.Identity
	var acct, jurisdiction string
	err := s.pool.QueryRow(ctx,
		`SELECT account, jurisdiction, registered_at, updated_at FROM identities WHERE account = $1`,
		account.String(),
	).Scan(&acct, &jurisdiction, &identity.RegisteredAt, &identity.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	identity.Account = id.AccountID(acct)
	identity.Jurisdiction = id.Jurisdiction(jurisdiction)
	return &identity, nil
}

func (s *Postgres) DeleteIdentity(ctx context.Context, account id.AccountID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM identities WHERE account = $1`, account.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) UpdateIdentity(ctx context.Context, identity *models.Identity) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identities SET jurisdiction = $2, updated_at = $3 WHERE account = $1`,
		identity.Account.String(), identity.Jurisdiction.String(), identity.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) AddClaim(ctx context.Context, claim *models.Claim) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO identity_claims (id, account, topic, issuer, scheme, signature, data, uri, issued_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		claim.ID.String(), claim.Account.String(), claim.Topic.String(), claim.Issuer.String(),
		int64(claim.Scheme), claim.Signature, claim.Data, claim.URI, claim.IssuedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		// foreign key: identity does not exist
		return sentinel.ErrNotFound
	}
	return err
}

func (s *Postgres) GetClaim(ctx context.Context, account id.AccountID, claimID id.ClaimID) (*models.Claim, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, account, topic, issuer, scheme, signature, data, uri, issued_at
		 FROM identity_claims WHERE account = $1 AND id = $2`,
		account.String(), claimID.String(),
	)
	return scanClaim(row)
}

func (s *Postgres) RemoveClaim(ctx context.Context, account id.AccountID, claimID id.ClaimID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM identity_claims WHERE account = $1 AND id = $2`,
		account.String(), claimID.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ClaimsByTopic(ctx context.Context, account id.AccountID, topic id.ClaimTopic) ([]*models.Claim, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account, topic, issuer, scheme, signature, data, uri, issued_at
		 FROM identity_claims WHERE account = $1 AND topic = $2`,
		account.String(), topic.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClaims(rows)
}

func (s *Postgres) HasClaimForTopic(ctx context.Context, account id.AccountID, topic id.ClaimTopic) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM identity_claims WHERE account = $1 AND topic = $2)`,
		account.String(), topic.String(),
	).Scan(&exists)
	return exists, err
}

func (s *Postgres) ListClaims(ctx context.Context, account id.AccountID) ([]*models.Claim, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account, topic, issuer, scheme, signature, data, uri, issued_at
		 FROM identity_claims WHERE account = $1`,
		account.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClaims(rows)
}

func (s *Postgres) CreateIssuer(ctx context.Context, issuer *models.Issuer) error {
	topics := make([]string, 0, len(issuer.Topics))
	for topic := range issuer.Topics {
		topics = append(topics, topic.String())
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO claim_issuers (account, topics, added_at) VALUES ($1, $2, $3)`,
		issuer.Account.String(), topics, issuer.AddedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	return err
}

func (s *Postgres) GetIssuer(ctx context.Context, account id.AccountID) (*models.Issuer, error) {
	var acct string
	var topics []string
	issuer := &models.Issuer{}
	err := s.pool.QueryRow(ctx,
		`SELECT account, topics, added_at FROM claim_issuers WHERE account = $1`,
		account.String(),
	).Scan(&acct, &topics, &issuer.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	issuer.Account = id.AccountID(acct)
	issuer.Topics = make(map[id.ClaimTopic]struct{}, len(topics))
	for _, topic := range topics {
		issuer.Topics[id.ClaimTopic(topic)] = struct{}{}
	}
	return issuer, nil
}

func (s *Postgres) UpdateIssuer(ctx context.Context, issuer *models.Issuer) error {
	topics := make([]string, 0, len(issuer.Topics))
	for topic := range issuer.Topics {
		topics = append(topics, topic.String())
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE claim_issuers SET topics = $2 WHERE account = $1`,
		issuer.Account.String(), topics,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteIssuer(ctx context.Context, account id.AccountID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM claim_issuers WHERE account = $1`, account.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*models.Claim, error) {
	var claim models.Claim
	var claimID, acct, topic, issuer string
	var scheme int64
	err := row.Scan(&claimID, &acct, &topic, &issuer, &scheme, &claim.Signature, &claim.Data, &claim.URI, &claim.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseClaimID(claimID)
	if err != nil {
		return nil, err
	}
	claim.ID = parsed
	claim.Account = id.AccountID(acct)
	claim.Topic = id.ClaimTopic(topic)
	claim.Issuer = id.AccountID(issuer)
	claim.Scheme = uint64(scheme)
	return &claim, nil
}

func collectClaims(rows pgx.Rows) ([]*models.Claim, error) {
	var out []*models.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, claim)
	}
	return out, rows.Err()
}
