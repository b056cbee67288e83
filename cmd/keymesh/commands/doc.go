// Package commands implements the keymesh CLI. The CLI covers the local
// operations: identity, status, rotation, backup and recovery. Message
// transport and directory lookups belong to the host application.
package commands
