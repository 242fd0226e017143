package session

import "strings"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleTeacher  Role = "teacher"
	RoleEmployee Role = "employee"
)

var remoteRoles = map[string]Role{
	"administrativo": RoleAdmin,
	"docente":        RoleTeacher,
	"obrero":         RoleEmployee,
	"cenar":          RoleEmployee,
}

// MapRemoteRole translates the backend role. ok is false when the account has
// no role at all; unknown roles fall back to employee.
func MapRemoteRole(remote string) (role Role, ok bool) {
	remote = strings.ToLower(strings.TrimSpace(remote))
	if remote == "" {
		return "", false
	}
	if r, found := remoteRoles[remote]; found {
		return r, true
	}
	return RoleEmployee, true
}
