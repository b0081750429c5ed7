package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/layout"
	"github.com/xendao/governance/internal/models"
)

const (
	kindOrganization = "organization"
	kindProposal     = "proposal"

	uniqueViolation = "23505"
)

// Postgres stores records in the accounts table using the fixed byte layout.
// Update runs in a transaction and locks every record it reads with FOR UPDATE.
type Postgres struct {
	pool     *pgxpool.Pool
	voterCap int
}

// NewPostgres creates a Postgres store. voterCap sizes encoded proposal
// records; 0 stores proposals at their exact size.
func NewPostgres(pool *pgxpool.Pool, voterCap int) *Postgres {
	return &Postgres{pool: pool, voterCap: voterCap}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectAccount = `SELECT address, organization, bump, lamports, data, created_at, updated_at FROM accounts`

func (s *Postgres) Organization(ctx context.Context, addr address.Pubkey) (*models.Organization, error) {
	return getOrganization(ctx, s.pool, addr, false)
}

func (s *Postgres) Proposal(ctx context.Context, addr address.Pubkey) (*models.Proposal, error) {
	return getProposal(ctx, s.pool, addr, false)
}

// Proposals returns live proposals of org ordered by sequence id.
func (s *Postgres) Proposals(ctx context.Context, org address.Pubkey) ([]*models.Proposal, error) {
	const q = selectAccount + ` WHERE kind = 'proposal' AND organization = $1 ORDER BY sequence_id`
	rows, err := s.pool.Query(ctx, q, org[:])
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()
	list := []*models.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Credits returns the reclaimed lamports credited to owner.
func (s *Postgres) Credits(ctx context.Context, owner address.Pubkey) (uint64, error) {
	var lamports int64
	err := s.pool.QueryRow(ctx, `SELECT lamports FROM credits WHERE owner = $1`, owner[:]).Scan(&lamports)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get credits: %w", err)
	}
	return uint64(lamports), nil
}

// Update runs fn inside a database transaction.
func (s *Postgres) Update(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&postgresTx{tx: tx, voterCap: s.voterCap})
	})
}

type postgresTx struct {
	tx       pgx.Tx
	voterCap int
}

func (t *postgresTx) Organization(ctx context.Context, addr address.Pubkey) (*models.Organization, error) {
	return getOrganization(ctx, t.tx, addr, true)
}

func (t *postgresTx) Proposal(ctx context.Context, addr address.Pubkey) (*models.Proposal, error) {
	return getProposal(ctx, t.tx, addr, true)
}

func (t *postgresTx) InsertOrganization(ctx context.Context, org *models.Organization) error {
	data, err := layout.EncodeOrganization(org)
	if err != nil {
		return err
	}
	const q = `INSERT INTO accounts (address, kind, bump, lamports, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = t.tx.Exec(ctx, q, org.Address[:], kindOrganization, int16(org.Bump), int64(org.Lamports), data, org.CreatedAt, org.UpdatedAt)
	return insertErr("organization", err)
}

func (t *postgresTx) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	data, err := layout.EncodeOrganization(org)
	if err != nil {
		return err
	}
	const q = `UPDATE accounts SET data = $2, updated_at = $3 WHERE address = $1 AND kind = 'organization'`
	tag, err := t.tx.Exec(ctx, q, org.Address[:], data, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *postgresTx) InsertProposal(ctx context.Context, p *models.Proposal) error {
	data, err := layout.EncodeProposal(p, t.voterCap)
	if err != nil {
		return err
	}
	const q = `INSERT INTO accounts (address, kind, organization, sequence_id, bump, lamports, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = t.tx.Exec(ctx, q, p.Address[:], kindProposal, p.Organization[:], int16(p.SequenceID), int16(p.Bump),
		int64(p.Lamports), data, p.CreatedAt, p.UpdatedAt)
	return insertErr("proposal", err)
}

func (t *postgresTx) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	data, err := layout.EncodeProposal(p, t.voterCap)
	if err != nil {
		return err
	}
	const q = `UPDATE accounts SET data = $2, updated_at = $3 WHERE address = $1 AND kind = 'proposal'`
	tag, err := t.tx.Exec(ctx, q, p.Address[:], data, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *postgresTx) DeleteProposal(ctx context.Context, addr address.Pubkey) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM accounts WHERE address = $1 AND kind = 'proposal'`, addr[:])
	if err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *postgresTx) Credit(ctx context.Context, owner address.Pubkey, lamports uint64) error {
	const q = `INSERT INTO credits (owner, lamports, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (owner) DO UPDATE SET lamports = credits.lamports + EXCLUDED.lamports, updated_at = NOW()`
	if _, err := t.tx.Exec(ctx, q, owner[:], int64(lamports)); err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	return nil
}

// accountRow is the common column set of the accounts table.
type accountRow struct {
	address      []byte
	organization []byte
	bump         int16
	lamports     int64
	data         []byte
	createdAt    time.Time
	updatedAt    time.Time
}

func scanAccount(row pgx.Row) (*accountRow, error) {
	var a accountRow
	err := row.Scan(&a.address, &a.organization, &a.bump, &a.lamports, &a.data, &a.createdAt, &a.updatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func getOrganization(ctx context.Context, q querier, addr address.Pubkey, lock bool) (*models.Organization, error) {
	query := selectAccount + ` WHERE address = $1 AND kind = 'organization'`
	if lock {
		query += ` FOR UPDATE`
	}
	a, err := scanAccount(q.QueryRow(ctx, query, addr[:]))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	org, err := layout.DecodeOrganization(a.data)
	if err != nil {
		return nil, err
	}
	org.Address = addr
	org.Bump = uint8(a.bump)
	org.Lamports = uint64(a.lamports)
	org.CreatedAt, org.UpdatedAt = a.createdAt, a.updatedAt
	return org, nil
}

func getProposal(ctx context.Context, q querier, addr address.Pubkey, lock bool) (*models.Proposal, error) {
	query := selectAccount + ` WHERE address = $1 AND kind = 'proposal'`
	if lock {
		query += ` FOR UPDATE`
	}
	p, err := scanProposal(q.QueryRow(ctx, query, addr[:]))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

func scanProposal(row pgx.Row) (*models.Proposal, error) {
	a, err := scanAccount(row)
	if err != nil {
		return nil, err
	}
	p, err := layout.DecodeProposal(a.data)
	if err != nil {
		return nil, err
	}
	if p.Address, err = address.PubkeyFromBytes(a.address); err != nil {
		return nil, err
	}
	if p.Organization, err = address.PubkeyFromBytes(a.organization); err != nil {
		return nil, err
	}
	p.Bump = uint8(a.bump)
	p.Lamports = uint64(a.lamports)
	p.CreatedAt, p.UpdatedAt = a.createdAt, a.updatedAt
	return p, nil
}

func insertErr(kind string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return fmt.Errorf("insert %s: %w", kind, err)
}

var _ Store = (*Postgres)(nil)
