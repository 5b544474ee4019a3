package permissions

// PermissionDefinition describes a single, specific permission
type PermissionDefinition struct {
	Key         string `json:"key"`         // unique key, e.g., "image.assign"
	Name        string `json:"name"`        // friendly name
	Description string `json:"description"` // what the permission allows
}

const (
	// ImageAssign allows assigning unassigned images to any user.
	ImageAssign = "image.assign"
	// ImageDeleteAny allows deleting images uploaded by other users.
	ImageDeleteAny = "image.delete_any"
)

// DefinedPermissions holds all statically defined permissions
var DefinedPermissions = []PermissionDefinition{
	{
		Key:         ImageAssign,
		Name:        "Assign Images",
		Description: "Allows assigning unassigned images to any user, not just images the user uploaded.",
	},
	{
		Key:         ImageDeleteAny,
		Name:        "Delete Any Image",
		Description: "Allows deleting images uploaded by other users.",
	},
}
