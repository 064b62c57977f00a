package domain

// Named capabilities within a company context.
const (
	PermFinancesView   = "finances:view"
	PermFinancesEdit   = "finances:edit"
	PermFinancesDelete = "finances:delete"

	PermReportsView     = "reports:view"
	PermReportsGenerate = "reports:generate"
	PermReportsExport   = "reports:export"

	PermCatalogView   = "catalog:view"
	PermCatalogEdit   = "catalog:edit"
	PermCatalogManage = "catalog:manage"

	PermUsersView   = "users:view"
	PermUsersInvite = "users:invite"
	PermUsersManage = "users:manage"
	PermUsersDelete = "users:delete"

	PermCompanyView   = "company:view"
	PermCompanyEdit   = "company:edit"
	PermCompanyManage = "company:manage"

	PermSettingsView = "settings:view"
	PermSettingsEdit = "settings:edit"
)

// AllPermissions lists every defined capability.
var AllPermissions = []string{
	PermFinancesView, PermFinancesEdit, PermFinancesDelete,
	PermReportsView, PermReportsGenerate, PermReportsExport,
	PermCatalogView, PermCatalogEdit, PermCatalogManage,
	PermUsersView, PermUsersInvite, PermUsersManage, PermUsersDelete,
	PermCompanyView, PermCompanyEdit, PermCompanyManage,
	PermSettingsView, PermSettingsEdit,
}

// PermissionsForRole derives the stored permission set from a company
// role. It is the single source of truth: every place that sets or
// changes a role must call it, so role and permissions never drift.
func PermissionsForRole(role string) []string {
	switch role {
	case RoleOwner:
		out := make([]string, len(AllPermissions))
		copy(out, AllPermissions)
		return out
	case RoleAdmin:
		return []string{
			PermFinancesView, PermFinancesEdit,
			PermReportsView, PermReportsGenerate, PermReportsExport,
			PermCatalogView, PermCatalogEdit,
			PermUsersView, PermUsersInvite, PermUsersManage,
			PermCompanyView, PermCompanyEdit,
			PermSettingsView, PermSettingsEdit,
		}
	case RoleManager:
		return []string{
			PermFinancesView, PermFinancesEdit,
			PermReportsView, PermReportsGenerate,
			PermCatalogView, PermCatalogEdit,
			PermUsersView,
			PermCompanyView,
		}
	case RoleAccountant:
		return []string{
			PermFinancesView, PermFinancesEdit,
			PermReportsView, PermReportsGenerate,
			PermCatalogView, PermCatalogEdit,
		}
	case RoleUser, RoleViewer:
		// user and viewer carry identical sets today; kept as separate
		// roles pending product clarification.
		return []string{
			PermFinancesView,
			PermReportsView,
			PermCatalogView,
		}
	default:
		return nil
	}
}
