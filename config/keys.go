package config

import (
	"reflect"
	"strings"
	"time"
)

// Keys lists every dotted config key ("bus.address", "reconnect.interval",
// ...) so each one can be bound to its BOOTENV_* variable. Fields without a
// mapstructure tag use their lower-cased name, as mapstructure matches them.
func Keys() []string {
	return appendKeys(nil, "", reflect.TypeOf(Config{}))
}

func appendKeys(keys []string, prefix string, t reflect.Type) []string {
	durationType := reflect.TypeOf(time.Duration(0))
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		if f.Type.Kind() == reflect.Struct && f.Type != durationType {
			keys = appendKeys(keys, prefix+name+".", f.Type)
			continue
		}
		keys = append(keys, prefix+name)
	}
	return keys
}
