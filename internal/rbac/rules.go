package rbac

// DefaultGrants is the static rule table. Absence of a rule means deny.
//
// There is no role inheritance: ADMIN rows are spelled out for every resource
// and action it may use. Blanket "admin implies all" shortcuts would make the
// table harder to audit, so each grant stays explicit.
func DefaultGrants() []Grant {
	grants := make([]Grant, 0, 64)

	// ADMIN: explicit full access, including the admin area.
	for _, resource := range Resources() {
		for _, action := range Actions() {
			grants = append(grants, Grant{Role: RoleAdmin, Resource: resource, Action: action})
		}
	}

	// TRANSPORT_MANAGER: runs the fleet day to day. No admin area, no
	// destructive access to vehicles or drivers.
	grants = append(grants,
		Grant{RoleTransportManager, ResourceVehicles, ActionCreate},
		Grant{RoleTransportManager, ResourceVehicles, ActionRead},
		Grant{RoleTransportManager, ResourceVehicles, ActionUpdate},
		Grant{RoleTransportManager, ResourceDrivers, ActionCreate},
		Grant{RoleTransportManager, ResourceDrivers, ActionRead},
		Grant{RoleTransportManager, ResourceDrivers, ActionUpdate},
		Grant{RoleTransportManager, ResourceMissions, ActionCreate},
		Grant{RoleTransportManager, ResourceMissions, ActionRead},
		Grant{RoleTransportManager, ResourceMissions, ActionUpdate},
		Grant{RoleTransportManager, ResourceMissions, ActionDelete},
		Grant{RoleTransportManager, ResourceMaintenance, ActionRead},
		Grant{RoleTransportManager, ResourceReports, ActionRead},
	)

	// DRIVER: sees assigned missions and the vehicles behind them.
	grants = append(grants,
		Grant{RoleDriver, ResourceMissions, ActionRead},
		Grant{RoleDriver, ResourceMissions, ActionUpdate},
		Grant{RoleDriver, ResourceVehicles, ActionRead},
	)

	// TECHNICIAN: maintains vehicles, records interventions.
	grants = append(grants,
		Grant{RoleTechnician, ResourceMaintenance, ActionCreate},
		Grant{RoleTechnician, ResourceMaintenance, ActionRead},
		Grant{RoleTechnician, ResourceMaintenance, ActionUpdate},
		Grant{RoleTechnician, ResourceVehicles, ActionRead},
	)

	// FINANCE: read-only view over costs and activity.
	grants = append(grants,
		Grant{RoleFinance, ResourceReports, ActionRead},
		Grant{RoleFinance, ResourceVehicles, ActionRead},
		Grant{RoleFinance, ResourceMissions, ActionRead},
		Grant{RoleFinance, ResourceMaintenance, ActionRead},
	)

	return grants
}
