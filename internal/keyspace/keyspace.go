// Package keyspace maps (data class, tenant, canonical subject) onto
// store keys. Keys are deterministic and collision-free across classes
// and tenants; callers must pass an already-canonical subject.
package keyspace

import "fmt"

// Class is one of the independently-lived data classes.
type Class string

const (
	Dialog      Class = "dialog"
	ClientCache Class = "client"
	Preferences Class = "prefs"
	Messages    Class = "messages"
	FullContext Class = "fullctx"
	Processing  Class = "processing"
)

// Key returns the store key for one data class of one identity.
func Key(class Class, tenantID int64, subject string) string {
	return fmt.Sprintf("%s:%d:%s", class, tenantID, subject)
}

// HealthProbe returns a throwaway key used by the synthetic
// write/read/delete health cycle. probe should be unique per check.
func HealthProbe(probe string) string {
	return "health:probe:" + probe
}
