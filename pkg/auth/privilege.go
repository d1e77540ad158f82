package auth

import "strings"

// PrivilegeChecker decides which admission tier a caller gets.
// Elevated means the higher rate-limit profile, nothing more; it is never
// an authorization decision.
type PrivilegeChecker struct {
	adminEmails map[string]struct{}
}

// NewPrivilegeChecker creates a checker with an optional admin allowlist
func NewPrivilegeChecker(adminEmails []string) *PrivilegeChecker {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &PrivilegeChecker{adminEmails: admins}
}

// IsElevated reports whether the caller gets the elevated rate-limit tier
func (p *PrivilegeChecker) IsElevated(email, tier string) bool {
	if tier == "elevated" {
		return true
	}
	_, ok := p.adminEmails[strings.ToLower(email)]
	return ok
}
