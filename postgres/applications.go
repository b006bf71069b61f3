package postgres

import (
	"context"
	"errors"
	"fmt"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/jackc/pgx/v5"
)

// ApplicationStore implements goIdentity.ApplicationStore.
type ApplicationStore struct {
	db DB
}

func NewApplicationStore(db DB) *ApplicationStore {
	return &ApplicationStore{db: db}
}

var _ goIdentity.ApplicationStore = (*ApplicationStore)(nil)

// FindApplication returns the machine client with id.
func (s *ApplicationStore) FindApplication(ctx context.Context, id string) (*goIdentity.Application, error) {
	query := `
		SELECT id, domain, secret_hash, secret_salt, secret_version, active, scopes, permissions
		FROM applications
		WHERE id = $1`

	var app goIdentity.Application
	err := s.db.QueryRow(ctx, query, id).Scan(
		&app.ID,
		&app.Domain,
		&app.SecretHash,
		&app.SecretSalt,
		&app.SecretVersion,
		&app.Active,
		&app.Scopes,
		&app.Permissions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}
	return &app, nil
}
