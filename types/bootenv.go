package types

import "fmt"

// BootEnvironment is the client-side record for one remote boot environment.
type BootEnvironment struct {
	// ID is the D-Bus object path of the environment; unique in a collection.
	ID   string `json:"id"`
	Name string `json:"name"`
	// Description is nil when the service reports an empty string.
	Description *string `json:"description,omitempty"`

	Active   bool `json:"active"`    // currently booted
	NextBoot bool `json:"next_boot"` // selected for every following boot
	BootOnce bool `json:"boot_once"` // selected for the next boot only

	Created int64 `json:"created"` // Unix seconds
}

// Label renders the environment the way the applet does: "desc (name)" when a
// description exists, otherwise the bare name.
func (b *BootEnvironment) Label() string {
	if b.Description != nil {
		return fmt.Sprintf("%s (%s)", *b.Description, b.Name)
	}
	return b.Name
}
