package domain

// Role is carried in the bearer token and checked by the API's role middleware.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleCoordinator Role = "coordinator"
	RoleInstructor  Role = "instructor"
)
