package auth

import "strings"

type StaffPermission string

const (
	PermOrders    StaffPermission = "orders"
	PermKitchen   StaffPermission = "kitchen"
	PermService   StaffPermission = "service"
	PermDashboard StaffPermission = "dashboard"
)

var rolePermissions = map[UserRole][]StaffPermission{
	RoleAdmin: {PermOrders, PermKitchen, PermService, PermDashboard},
	RoleStaff: {PermOrders, PermKitchen, PermService},
}

var apiPermissionMap = map[string]StaffPermission{
	"/api/orders":           PermOrders,
	"/api/orders/kitchen":   PermKitchen,
	"PUT /api/orders/items": PermKitchen,
	"/api/service":          PermService,
	"/api/dashboard":        PermDashboard,
}

// GetPermissionForAPI returns the permission guarding a staff path, preferring
// the longest matching prefix and method-specific entries on ties.
func GetPermissionForAPI(path string, method string) *StaffPermission {
	method = strings.ToUpper(strings.TrimSpace(method))

	var bestPath string
	var bestPerm *StaffPermission
	var bestMethodSpecific bool

	for key, perm := range apiPermissionMap {
		keyPath := key
		methodSpecific := false
		if strings.Contains(key, " ") {
			parts := strings.SplitN(key, " ", 2)
			keyMethod := strings.ToUpper(strings.TrimSpace(parts[0]))
			keyPath = strings.TrimSpace(parts[1])
			methodSpecific = true
			if method == "" || method != keyMethod {
				continue
			}
		}

		if !strings.HasPrefix(path, keyPath) {
			continue
		}

		if bestPerm == nil || len(keyPath) > len(bestPath) || (len(keyPath) == len(bestPath) && methodSpecific && !bestMethodSpecific) {
			bestPath = keyPath
			bestMethodSpecific = methodSpecific
			permCopy := perm
			bestPerm = &permCopy
		}
	}

	return bestPerm
}

// HasPermission checks the role defaults first, then any explicit grants in the token.
func HasPermission(role UserRole, granted []string, perm StaffPermission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	for _, p := range granted {
		if StaffPermission(strings.TrimSpace(p)) == perm {
			return true
		}
	}
	return false
}
