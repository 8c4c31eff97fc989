package shared

// ActorKind distinguishes the two disjoint identity shapes.
type ActorKind string

const (
	// ActorStaff is an internal user with a role.
	ActorStaff ActorKind = "staff"
	// ActorSupplier is an external supplier portal identity.
	ActorSupplier ActorKind = "supplier"
)

// Actor is the resolved identity behind a request. Exactly one shape is
// populated: staff actors carry UserID and Role, supplier actors carry
// SupplierID. An actor is never both.
type Actor struct {
	Kind        ActorKind
	UserID      int64
	SupplierID  int64
	Role        string
	DisplayName string
	Email       string
}

// IsStaff reports whether the actor is an internal user.
func (a Actor) IsStaff() bool {
	return a.Kind == ActorStaff
}

// IsSupplier reports whether the actor is a supplier portal identity.
func (a Actor) IsSupplier() bool {
	return a.Kind == ActorSupplier
}

// Zero reports whether no identity was resolved.
func (a Actor) Zero() bool {
	return a.Kind == ""
}
