// Package identity generates and unlocks the long-term device identity and
// manages the pre-keys published for session establishment.
package identity
