package domain

// Role differentiates callers of the back-office API.
type Role string

const (
	RoleVendor  Role = "vendor"
	RoleAgent   Role = "agent"
	RoleService Role = "service"
)

// Principal is the authenticated caller, scoped to one vendor.
// Service principals (schedulers, payment webhooks) may act on any vendor.
type Principal struct {
	SubjectID string
	VendorID  string
	Role      Role
}

// Actor is the identifier recorded in audit trails.
func (p Principal) Actor() string {
	if p.SubjectID == "" {
		return string(p.Role)
	}
	return string(p.Role) + ":" + p.SubjectID
}

// ActorSystem is recorded for changes made by scheduled sweeps.
const ActorSystem = "system"
