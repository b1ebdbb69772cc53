package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
)

const (
	colFirstName = "first_name"
	colLastName  = "last_name"
	colEmail     = "email"
)

// CreateUser stores the identity fields shown in order views.
// A duplicate id or email fails with ErrAlreadyExists.
func (s Store) CreateUser(ctx context.Context, user marketplace.NewUser) error {
	ctx, observer := s.startOperation(ctx, opCreateUser, nil)

	stmt := builder().Insert(tableUsers).Rows(goqu.Record{
		colID:        user.ID.String(),
		colFirstName: user.FirstName,
		colLastName:  user.LastName,
		colEmail:     user.Email,
	})

	_, err := s.exec(ctx, s.db, stmt)

	return observer.finish(ctx, err)
}
