package postgres

import (
	"context"
	"errors"
	"fmt"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `a.id, a.domain, a.password_hash, a.password_salt, a.password_version,
		a.password_updated_at, a.active, COALESCE(a.external_id, ''), a.scopes, a.permissions, a.roles`

// AccountStore implements goIdentity.AccountStore.
type AccountStore struct {
	db DB
}

// NewAccountStore creates an account store over db.
func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

var _ goIdentity.AccountStore = (*AccountStore)(nil)

// FindByIdentifier returns the account of domain that owns identifier. The
// identifier's activation flag is loaded, not filtered on.
func (s *AccountStore) FindByIdentifier(ctx context.Context, identifier, domain string) (*goIdentity.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		JOIN account_identifiers i ON i.account_id = a.id
		WHERE i.value = $1 AND a.domain = $2
		LIMIT 1`

	a, err := s.scanAccount(ctx, query, identifier, domain)
	if err != nil || a == nil {
		return nil, err
	}
	if err := s.loadIdentifiers(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// FindByID returns the account with id.
func (s *AccountStore) FindByID(ctx context.Context, id string) (*goIdentity.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		WHERE a.id = $1`

	a, err := s.scanAccount(ctx, query, id)
	if err != nil || a == nil {
		return nil, err
	}
	if err := s.loadIdentifiers(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AccountStore) scanAccount(ctx context.Context, query string, args ...any) (*goIdentity.Account, error) {
	var a goIdentity.Account
	err := s.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Domain,
		&a.PasswordHash,
		&a.PasswordSalt,
		&a.PasswordVersion,
		&a.PasswordUpdatedAt,
		&a.Active,
		&a.ExternalID,
		&a.Scopes,
		&a.Permissions,
		&a.Roles,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

func (s *AccountStore) loadIdentifiers(ctx context.Context, a *goIdentity.Account) error {
	query := `
		SELECT type, value, active
		FROM account_identifiers
		WHERE account_id = $1
		ORDER BY value`

	rows, err := s.db.Query(ctx, query, a.ID)
	if err != nil {
		return fmt.Errorf("list identifiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  goIdentity.Identifier
			typ string
		)
		if err := rows.Scan(&typ, &id.Value, &id.Active); err != nil {
			return fmt.Errorf("scan identifier: %w", err)
		}
		id.Type = goIdentity.IdentifierType(typ)
		a.Identifiers = append(a.Identifiers, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate identifiers: %w", err)
	}
	return nil
}
