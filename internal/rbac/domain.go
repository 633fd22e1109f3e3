package rbac

import "strings"

// Role identifies the actor type attached to a user account. Roles are
// assigned at account creation and never change within a session.
type Role string

const (
	RoleAdmin            Role = "ADMIN"
	RoleTransportManager Role = "TRANSPORT_MANAGER"
	RoleDriver           Role = "DRIVER"
	RoleTechnician       Role = "TECHNICIAN"
	RoleFinance          Role = "FINANCE"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleTransportManager, RoleDriver, RoleTechnician, RoleFinance}
}

// ParseRole maps a raw string to a known Role. Unknown values report false so
// that callers fail closed.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleTransportManager:
		return RoleTransportManager, true
	case RoleDriver:
		return RoleDriver, true
	case RoleTechnician:
		return RoleTechnician, true
	case RoleFinance:
		return RoleFinance, true
	}
	return "", false
}

// Action is one of the four CRUD verbs a permission rule can grant.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists every known action.
func Actions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
}

// Domain resources permission rules are keyed on.
const (
	ResourceVehicles    = "vehicles"
	ResourceDrivers     = "drivers"
	ResourceMissions    = "missions"
	ResourceMaintenance = "maintenance"
	ResourceReports     = "reports"
	ResourceSettings    = "settings"
	ResourceAdmin       = "admin"
)

// Resources lists every resource covered by the default rule table.
func Resources() []string {
	return []string{
		ResourceVehicles,
		ResourceDrivers,
		ResourceMissions,
		ResourceMaintenance,
		ResourceReports,
		ResourceSettings,
		ResourceAdmin,
	}
}

// Grant is one explicit (role, resource, action) allow rule.
type Grant struct {
	Role     Role
	Resource string
	Action   Action
}
