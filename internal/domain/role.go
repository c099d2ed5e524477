package domain

// Role constants define the allowed user roles.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)
