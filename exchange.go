package goIdentity

import (
	"context"
	"fmt"
	"sort"
)

// Principal is the authenticated subject produced by a Verifier.
type Principal struct {
	EntityType  EntityType
	Account     *Account
	Application *Application
	// Restrictions carried by the verified artifact. Providers never widen them.
	Restrictions *TokenRestrictions
	// TrackingSession carried by the verified artifact, if any.
	TrackingSession string
}

// EntityID returns the id of the account or application.
func (p *Principal) EntityID() string {
	switch {
	case p == nil:
		return ""
	case p.Account != nil:
		return p.Account.ID
	case p.Application != nil:
		return p.Application.ID
	default:
		return ""
	}
}

// Verifier authenticates the presented credential of an AuthRequest.
type Verifier interface {
	Verify(ctx context.Context, req AuthRequest) (*Principal, error)
}

// Provider mints a token for an authenticated principal.
type Provider interface {
	Provide(ctx context.Context, principal *Principal, req AuthRequest) (*Tokens, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, req AuthRequest) (*Principal, error)

func (f VerifierFunc) Verify(ctx context.Context, req AuthRequest) (*Principal, error) {
	return f(ctx, req)
}

// Exchange composes one Verifier with one Provider. It holds no
// authentication logic of its own and returns their errors unchanged.
type Exchange struct {
	From     ExchangeType
	To       ExchangeType
	Verifier Verifier
	Provider Provider
}

// Pair returns the registry key of x.
func (x Exchange) Pair() ExchangePair {
	return ExchangePair{From: x.From, To: x.To}
}

// Run verifies req and, on success, provides the target token.
func (x Exchange) Run(ctx context.Context, req AuthRequest) (*Tokens, error) {
	principal, err := x.Verifier.Verify(ctx, req)
	if err != nil {
		return nil, err
	}
	tokens, err := x.Provider.Provide(ctx, principal, req)
	if err != nil {
		return nil, err
	}
	tokens.Type = x.To
	return tokens, nil
}

type registry struct {
	exchanges map[ExchangePair]Exchange
}

// newRegistry builds the static lookup table. Duplicate pairs and incomplete
// exchanges are configuration errors.
func newRegistry(exchanges ...Exchange) (*registry, error) {
	r := &registry{exchanges: make(map[ExchangePair]Exchange, len(exchanges))}
	for _, x := range exchanges {
		if x.From == "" || x.To == "" {
			return nil, fmt.Errorf("exchange %s: from and to are required", x.Pair())
		}
		if x.Verifier == nil || x.Provider == nil {
			return nil, fmt.Errorf("exchange %s: verifier and provider are required", x.Pair())
		}
		if _, dup := r.exchanges[x.Pair()]; dup {
			return nil, fmt.Errorf("exchange %s registered twice", x.Pair())
		}
		r.exchanges[x.Pair()] = x
	}
	return r, nil
}

func (r *registry) lookup(from, to ExchangeType) (Exchange, bool) {
	if r == nil {
		return Exchange{}, false
	}
	x, ok := r.exchanges[ExchangePair{From: from, To: to}]
	return x, ok
}

func (r *registry) pairs() []ExchangePair {
	if r == nil {
		return nil
	}
	out := make([]ExchangePair, 0, len(r.exchanges))
	for pair := range r.exchanges {
		out = append(out, pair)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}
