package rbac

import (
	"errors"
	"fmt"

	"github.com/procura-ims/procura/internal/shared"
)

// ErrForbidden is the base of every authorization rejection issued by the
// gate. Callers test with errors.Is.
var ErrForbidden = errors.New("rbac: forbidden")

// Gate answers "may this actor do that" for both identity shapes. It holds
// no state beyond the fixed role matrix.
type Gate struct{}

// NewGate returns the authorization gate.
func NewGate() *Gate {
	return &Gate{}
}

// Can reports whether a staff actor holds the capability. Suppliers and
// anonymous actors never hold staff capabilities.
func (g *Gate) Can(actor shared.Actor, cap Capability) bool {
	if !actor.IsStaff() {
		return false
	}
	return RoleGrants(actor.Role, cap)
}

// RequireStaff rejects unless the actor is staff and holds every listed
// capability. An empty capability list only checks the identity shape.
func (g *Gate) RequireStaff(actor shared.Actor, caps ...Capability) error {
	if !actor.IsStaff() {
		return fmt.Errorf("%w: staff identity required", ErrForbidden)
	}
	for _, cap := range caps {
		if !RoleGrants(actor.Role, cap) {
			return fmt.Errorf("%w: missing capability %s", ErrForbidden, cap)
		}
	}
	return nil
}

// RequireAnyStaff rejects unless the actor is staff and holds at least one
// of the listed capabilities.
func (g *Gate) RequireAnyStaff(actor shared.Actor, caps ...Capability) error {
	if !actor.IsStaff() {
		return fmt.Errorf("%w: staff identity required", ErrForbidden)
	}
	if len(caps) == 0 {
		return nil
	}
	for _, cap := range caps {
		if RoleGrants(actor.Role, cap) {
			return nil
		}
	}
	return fmt.Errorf("%w: missing capability", ErrForbidden)
}

// RequireSupplier rejects unless the actor is a supplier identity.
func (g *Gate) RequireSupplier(actor shared.Actor) error {
	if !actor.IsSupplier() {
		return fmt.Errorf("%w: supplier identity required", ErrForbidden)
	}
	return nil
}

// RequireSupplierOwner rejects unless the actor is the supplier owning the
// resource. Supplier authorization is purely identity based; there is no
// capability matrix on the portal side.
func (g *Gate) RequireSupplierOwner(actor shared.Actor, supplierID int64) error {
	if err := g.RequireSupplier(actor); err != nil {
		return err
	}
	if actor.SupplierID != supplierID {
		return fmt.Errorf("%w: purchase order belongs to another supplier", ErrForbidden)
	}
	return nil
}
