// Package postgres implements the goIdentity account, application and TOTP
// key stores on PostgreSQL through pgx.
//
// The stores only read. Schema ownership stays with the application; the
// expected tables are:
//
//	accounts(id text primary key, domain text, password_hash text,
//	         password_salt text, password_version int,
//	         password_updated_at timestamptz, active bool,
//	         external_id text null, scopes text[], permissions text[],
//	         roles text[])
//	account_identifiers(account_id text, type text, value text, active bool,
//	                    unique(value, account_id))
//	applications(id text primary key, domain text, secret_hash text,
//	             secret_salt text, secret_version int, active bool,
//	             scopes text[], permissions text[])
//	totp_keys(account_id text, secret bytea, authenticator text, domain text,
//	          active bool, created_at timestamptz)
//
// Lookups follow the goIdentity store contract: no match is (nil, nil) and any
// other failure is returned wrapped.
package postgres
