package marketplace

import (
	"github.com/google/uuid"
)

// AddressFields are the location fields of an address.
type AddressFields struct {
	Line    string
	City    string
	State   string
	Zipcode string
}

// Address belongs to exactly one owner. Per owner, exactly one address is the default once any exists.
type Address struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	IsDefault bool
	AddressFields
}

// AddressPatch is a partial update; nil fields stay unchanged.
type AddressPatch struct {
	Line      *string
	City      *string
	State     *string
	Zipcode   *string
	IsDefault *bool
}

// PromotesToDefault reports whether the patch nominates the address as the owner's default.
func (p AddressPatch) PromotesToDefault() bool {
	return p.IsDefault != nil && *p.IsDefault
}

// DemotesDefault reports whether the patch clears the default flag.
func (p AddressPatch) DemotesDefault() bool {
	return p.IsDefault != nil && !*p.IsDefault
}

// Apply returns the address with the patch applied.
func (p AddressPatch) Apply(a Address) Address {
	if p.Line != nil {
		a.Line = *p.Line
	}

	if p.City != nil {
		a.City = *p.City
	}

	if p.State != nil {
		a.State = *p.State
	}

	if p.Zipcode != nil {
		a.Zipcode = *p.Zipcode
	}

	if p.IsDefault != nil {
		a.IsDefault = *p.IsDefault
	}

	return a
}

// CheckDefaultTransition enforces the single default rule for a patch applied to current.
// An owner must never be left without a default: clearing the flag on the current default
// without nominating another address is rejected.
func CheckDefaultTransition(current Address, patch AddressPatch) error {
	if current.IsDefault && patch.DemotesDefault() {
		return ErrMustKeepDefault
	}

	return nil
}

// CheckRemovable rejects removing the owner's current default address.
func CheckRemovable(a Address) error {
	if a.IsDefault {
		return ErrMustKeepDefault
	}

	return nil
}
