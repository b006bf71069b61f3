package postgres

import (
	"context"
	"errors"
	"fmt"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/jackc/pgx/v5"
)

// TOTPKeyStore implements goIdentity.TOTPKeyStore.
type TOTPKeyStore struct {
	db DB
}

func NewTOTPKeyStore(db DB) *TOTPKeyStore {
	return &TOTPKeyStore{db: db}
}

var _ goIdentity.TOTPKeyStore = (*TOTPKeyStore)(nil)

// FindActiveKey returns the newest active key of accountID.
func (s *TOTPKeyStore) FindActiveKey(ctx context.Context, accountID string) (*goIdentity.TOTPKey, error) {
	query := `
		SELECT account_id, secret, authenticator, domain, active
		FROM totp_keys
		WHERE account_id = $1 AND active
		ORDER BY created_at DESC
		LIMIT 1`

	var key goIdentity.TOTPKey
	err := s.db.QueryRow(ctx, query, accountID).Scan(
		&key.AccountID,
		&key.Secret,
		&key.Authenticator,
		&key.Domain,
		&key.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan totp key: %w", err)
	}
	return &key, nil
}
