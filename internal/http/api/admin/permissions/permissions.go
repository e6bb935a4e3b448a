package permissions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Definition describes an admin permission.
type Definition struct {
	Key    string `json:"key"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Label  string `json:"label"`
	Module string `json:"module"`
}

// Key builds a permission key from method and path.
func Key(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// NormalizePermissions trims, de-duplicates, and sorts permissions.
func NormalizePermissions(perms []string) []string {
	if len(perms) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, perm := range perms {
		trimmed := strings.TrimSpace(perm)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	sort.Strings(normalized)
	return normalized
}

// ValidatePermissions validates that all permissions exist in the definition set.
func ValidatePermissions(perms []string) error {
	if len(perms) == 0 {
		return nil
	}
	allowed := definitionMap
	for _, perm := range perms {
		trimmed := strings.TrimSpace(perm)
		if trimmed == "" {
			continue
		}
		if _, ok := allowed[trimmed]; !ok {
			return fmt.Errorf("invalid permission: %s", trimmed)
		}
	}
	return nil
}

// ParsePermissions parses and normalizes permissions from JSON.
func ParsePermissions(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var perms []string
	if err := json.Unmarshal(raw, &perms); err != nil {
		return []string{}
	}
	return NormalizePermissions(perms)
}

// MarshalPermissions serializes normalized permissions to JSON.
func MarshalPermissions(perms []string) ([]byte, error) {
	normalized := NormalizePermissions(perms)
	return json.Marshal(normalized)
}

// HasPermission checks whether the key exists in the permission list.
func HasPermission(perms []string, key string) bool {
	if key == "" {
		return false
	}
	for _, perm := range perms {
		if perm == key {
			return true
		}
	}
	return false
}

// Definitions returns a copy of all permission definitions.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefinitionMap returns a copy of the permission definition map.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitionMap))
	for key, value := range definitionMap {
		out[key] = value
	}
	return out
}

// newDefinition builds a Definition with a normalized key.
func newDefinition(method, path, label, module string) Definition {
	upperMethod := strings.ToUpper(method)
	return Definition{
		Key:    Key(upperMethod, path),
		Method: upperMethod,
		Path:   path,
		Label:  label,
		Module: module,
	}
}

// definitions is the ordered list of permission definitions.
var definitions = []Definition{
	newDefinition("GET", "/api/v1/admin/orders", "List Orders", "Orders"),
	newDefinition("GET", "/api/v1/admin/orders/:order_no", "Get Order", "Orders"),
	newDefinition("POST", "/api/v1/admin/orders/:order_no/paid", "Mark Order Paid", "Orders"),
	newDefinition("POST", "/api/v1/admin/orders/:order_no/refund", "Refund Order", "Orders"),
	newDefinition("DELETE", "/api/v1/admin/orders/:order_no", "Delete Order", "Orders"),

	newDefinition("POST", "/api/v1/admin/coupons", "Create Coupon", "Coupons"),
	newDefinition("POST", "/api/v1/admin/coupons/generate", "Generate Coupons", "Coupons"),
	newDefinition("GET", "/api/v1/admin/coupons", "List Coupons", "Coupons"),
	newDefinition("GET", "/api/v1/admin/coupons/:id", "Get Coupon", "Coupons"),
	newDefinition("PUT", "/api/v1/admin/coupons/:id", "Update Coupon", "Coupons"),
	newDefinition("DELETE", "/api/v1/admin/coupons/:id", "Delete Coupon", "Coupons"),

	newDefinition("POST", "/api/v1/admin/recharge-codes", "Generate Recharge Codes", "Recharge Codes"),
	newDefinition("GET", "/api/v1/admin/recharge-codes", "List Recharge Codes", "Recharge Codes"),
	newDefinition("DELETE", "/api/v1/admin/recharge-codes/:id", "Revoke Recharge Code", "Recharge Codes"),

	newDefinition("POST", "/api/v1/admin/plans", "Create Plan", "Plans"),
	newDefinition("GET", "/api/v1/admin/plans", "List Plans", "Plans"),
	newDefinition("GET", "/api/v1/admin/plans/:id", "Get Plan", "Plans"),
	newDefinition("PUT", "/api/v1/admin/plans/:id", "Update Plan", "Plans"),
	newDefinition("DELETE", "/api/v1/admin/plans/:id", "Delete Plan", "Plans"),

	newDefinition("GET", "/api/v1/admin/users", "List Users", "Users"),
	newDefinition("GET", "/api/v1/admin/users/:id", "Get User", "Users"),
	newDefinition("POST", "/api/v1/admin/users/:id/balance", "Adjust User Balance", "Users"),
	newDefinition("POST", "/api/v1/admin/users/:id/ban", "Ban User", "Users"),
	newDefinition("POST", "/api/v1/admin/users/:id/unban", "Unban User", "Users"),
	newDefinition("GET", "/api/v1/admin/balance/logs", "View Balance Logs", "Users"),

	newDefinition("GET", "/api/v1/admin/settings", "List Settings", "Settings"),
	newDefinition("GET", "/api/v1/admin/settings/:key", "Get Setting", "Settings"),
	newDefinition("PUT", "/api/v1/admin/settings/:key", "Update Setting", "Settings"),

	newDefinition("GET", "/api/v1/admin/permissions", "List Permission Definitions", "Administrators"),
}

// definitionMap provides fast lookup for permission definitions.
var definitionMap = func() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[def.Key] = def
	}
	return out
}()
