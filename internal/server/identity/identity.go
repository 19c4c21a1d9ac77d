// Package identity maps an email address to the deterministic identity id
// used as both user id and group id, and reports whether that user exists.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/calbot/internal/common"
	"github.com/dmitrijs2005/calbot/internal/dbx"
	"github.com/dmitrijs2005/calbot/internal/server/models"
	"github.com/dmitrijs2005/calbot/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// NormalizeEmail trims surrounding whitespace and lowercases email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DeriveID returns the name-based (SHA-1, URL namespace) UUID of an already
// normalized email.
func DeriveID(normalized string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(normalized)).String()
}

// Resolution is the outcome of resolving an email. ID is set whether or not
// the user exists; Row is the stored user row when Exists is true.
type Resolution struct {
	Email  string
	ID     string
	Exists bool
	Row    *models.Row
}

// Resolver looks identities up in the users bag store.
type Resolver struct {
	pool        dbx.Runner
	repomanager repomanager.RepositoryManager
}

// NewResolver constructs a Resolver.
func NewResolver(pool dbx.Runner, m repomanager.RepositoryManager) *Resolver {
	return &Resolver{pool: pool, repomanager: m}
}

// Resolve runs Lookup as its own store operation.
func (r *Resolver) Resolve(ctx context.Context, email string) (Resolution, error) {
	var res Resolution
	err := r.pool.Run(ctx, "identity.Resolve", func(ctx context.Context, q dbx.DBTX) error {
		var err error
		res, err = r.Lookup(ctx, q, email)
		return err
	})
	return res, err
}

// Lookup resolves email using an already acquired handle. Storage failures
// are returned unchanged.
func (r *Resolver) Lookup(ctx context.Context, q dbx.DBTX, email string) (Resolution, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return Resolution{}, common.NewValidationError("email", "is required")
	}

	res := Resolution{Email: normalized, ID: DeriveID(normalized)}

	row, err := r.repomanager.Users(q).FetchOne(ctx, res.ID, res.ID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return res, nil
	case err != nil:
		return res, err
	}

	res.Exists = true
	res.Row = row
	return res, nil
}
