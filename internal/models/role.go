package models

// Role is a named bundle of permissions assignable to a user. Roles are
// static reference data seeded by migration.
type Role struct {
	ID  int64
	Key string
}

// Permission is an atomic capability key checked by access-control gates.
type Permission struct {
	ID  int64
	Key string
}
