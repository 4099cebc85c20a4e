// Package jwt issues and verifies signed verification attestations: short-lived
// tokens stating that a session proved control of an email address or phone
// number, so other services can trust the result without sharing session state.
package jwt
