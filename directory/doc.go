// Package directory provides goVerify.DirectoryLookup implementations: a
// PostgreSQL-backed directory and an in-memory one for tests and
// development.
//
// Both match an email identity case-insensitively and a phone identity
// exactly, within a tenancy. An empty tenancy matches any tenancy.
package directory
