package dbus

import (
	"fmt"

	godbus "github.com/godbus/dbus/v5"

	"github.com/projecteru2/bootenv/bootenv"
	"github.com/projecteru2/bootenv/types"
)

// Property names of the ca.kamacite.BootEnvironment interface.
const (
	propName        = "Name"
	propDescription = "Description"
	propActive      = "Active"
	propNextBoot    = "NextBoot"
	propBootOnce    = "BootOnce"
	propCreated     = "Created"
)

// Decode turns the property dictionary of one object into a record.
// All six properties are required; the first missing or mistyped one fails
// the whole object. An empty Description decodes to nil.
func Decode(path godbus.ObjectPath, props map[string]godbus.Variant) (*types.BootEnvironment, error) {
	id := string(path)

	name, err := prop[string](id, props, propName)
	if err != nil {
		return nil, err
	}
	desc, err := prop[string](id, props, propDescription)
	if err != nil {
		return nil, err
	}
	active, err := prop[bool](id, props, propActive)
	if err != nil {
		return nil, err
	}
	nextBoot, err := prop[bool](id, props, propNextBoot)
	if err != nil {
		return nil, err
	}
	bootOnce, err := prop[bool](id, props, propBootOnce)
	if err != nil {
		return nil, err
	}
	created, err := prop[int64](id, props, propCreated)
	if err != nil {
		return nil, err
	}

	env := &types.BootEnvironment{
		ID:       id,
		Name:     name,
		Active:   active,
		NextBoot: nextBoot,
		BootOnce: bootOnce,
		Created:  created,
	}
	if desc != "" {
		env.Description = &desc
	}
	return env, nil
}

func prop[T any](id string, props map[string]godbus.Variant, name string) (T, error) {
	var zero T
	v, ok := props[name]
	if !ok {
		return zero, &bootenv.DecodeError{ID: id, Property: name, Err: bootenv.ErrMissingField}
	}
	val, ok := v.Value().(T)
	if !ok {
		return zero, &bootenv.DecodeError{
			ID:       id,
			Property: name,
			Err:      fmt.Errorf("%w: got %s, want %T", bootenv.ErrTypeMismatch, v.Signature(), zero),
		}
	}
	return val, nil
}
