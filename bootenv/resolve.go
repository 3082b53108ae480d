package bootenv

import (
	"fmt"
	"strings"

	"github.com/projecteru2/bootenv/types"
)

// Resolve finds the environment a user-supplied reference points at.
// Resolution order: exact object path → exact name → unique name prefix.
func Resolve(envs []*types.BootEnvironment, ref string) (*types.BootEnvironment, error) {
	if ref == "" {
		return nil, ErrNotFound
	}
	// 1. Object path.
	for _, env := range envs {
		if env.ID == ref {
			return env, nil
		}
	}
	// 2. Exact name.
	for _, env := range envs {
		if env.Name == ref {
			return env, nil
		}
	}
	// 3. Name prefix.
	var match *types.BootEnvironment
	for _, env := range envs {
		if !strings.HasPrefix(env.Name, ref) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w %q: matches %s and %s", ErrAmbiguous, ref, match.Name, env.Name)
		}
		match = env
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	return match, nil
}
