package domain

import (
	"slices"
	"strings"
)

type Permission string

const (
	PermAdmin     Permission = "admin"
	PermModerator Permission = "moderator"
	PermUser      Permission = "user"
)

type Role struct {
	Name        string
	Permissions []Permission
	Priority    int
}

func (r Role) Has(p Permission) bool {
	return slices.Contains(r.Permissions, p)
}

// RoleByName resuelve los roles conocidos del back-office; cualquier otro nombre es "user".
func RoleByName(name string) Role {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "admin":
		return Role{Name: "admin", Permissions: []Permission{PermAdmin, PermModerator, PermUser}, Priority: 100}
	case "moderator":
		return Role{Name: "moderator", Permissions: []Permission{PermModerator, PermUser}, Priority: 50}
	default:
		return Role{Name: "user", Permissions: []Permission{PermUser}, Priority: 0}
	}
}
