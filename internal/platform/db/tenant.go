package db

import (
	"regexp"
	"strings"
)

// GlobalTenantID is the reserved tenant that owns roles shared by every tenant.
const GlobalTenantID = "global"

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// NormalizeTenantID trims surrounding whitespace from a caller-supplied tenant id.
func NormalizeTenantID(tenantID string) string {
	return strings.TrimSpace(tenantID)
}

// ValidTenantID reports whether tenantID is usable as a caller tenant. The
// reserved global tenant is not a valid caller.
func ValidTenantID(tenantID string) bool {
	return tenantIDPattern.MatchString(tenantID) && tenantID != GlobalTenantID
}
