package goIdentity

import "slices"

// grants returns the scopes and permissions the principal may carry.
func grants(p *Principal) (scopes, permissions []string) {
	switch {
	case p == nil:
	case p.Account != nil:
		scopes, permissions = p.Account.Scopes, p.Account.Permissions
	case p.Application != nil:
		scopes, permissions = p.Application.Scopes, p.Application.Permissions
	}
	return scopes, permissions
}

// effectiveRestrictions resolves the restrictions of a token about to be
// minted. Requested restrictions must be a subset of the subject's grants and
// of any restrictions carried by the verified artifact. With no request the
// artifact's restrictions carry over. A nil result means unrestricted.
func effectiveRestrictions(p *Principal, requested *TokenRestrictions) (*TokenRestrictions, error) {
	scopes, permissions := grants(p)
	if p != nil && p.Restrictions != nil {
		scopes = intersect(scopes, p.Restrictions.Scopes)
		permissions = intersect(permissions, p.Restrictions.Permissions)
	}

	if requested == nil {
		if p == nil || p.Restrictions == nil {
			return nil, nil
		}
		return &TokenRestrictions{Scopes: scopes, Permissions: permissions}, nil
	}

	if !subset(requested.Scopes, scopes) || !subset(requested.Permissions, permissions) {
		return nil, ErrRestrictionNotGranted
	}
	return &TokenRestrictions{
		Scopes:      slices.Clone(requested.Scopes),
		Permissions: slices.Clone(requested.Permissions),
	}, nil
}

func subset(requested, granted []string) bool {
	for _, r := range requested {
		if !slices.Contains(granted, r) {
			return false
		}
	}
	return true
}

func intersect(a, b []string) []string {
	out := make([]string, 0, len(b))
	for _, v := range b {
		if slices.Contains(a, v) {
			out = append(out, v)
		}
	}
	return out
}
