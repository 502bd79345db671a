package shared

// Canonical permission names. Every name follows the module.resource.action
// shape enforced by the authorization engine.
const (
	PermUsersView   = "platform.users.view"
	PermUsersUpdate = "platform.users.update"

	PermRolesView   = "platform.roles.view"
	PermRolesUpdate = "platform.roles.update"
	PermRolesDelete = "platform.roles.delete"

	PermPermissionsView   = "platform.permissions.view"
	PermPermissionsUpdate = "platform.permissions.update"

	PermTagsView   = "tenant.tags.view"
	PermTagsCreate = "tenant.tags.create"
	PermTagsUpdate = "tenant.tags.update"
	PermTagsDelete = "tenant.tags.delete"
)

// CoreScopes lists the permissions wired into the admin surface.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersUpdate,
		PermRolesView,
		PermRolesUpdate,
		PermRolesDelete,
		PermPermissionsView,
		PermPermissionsUpdate,
		PermTagsView,
		PermTagsCreate,
		PermTagsUpdate,
		PermTagsDelete,
	}
}
