package descriptor

import (
	"fmt"
	"os"
)

// Reads the build secrets declared by the target from the environment.
//
// Secret values are never stored in the descriptor, only the names of the
// variables that carry them. A declared but unset variable is reported as an
// invalid descriptor so the run stops before anything is contacted. A nil
// lookup reads the process environment.
func (t *Target) ResolveSecrets(lookup func(string) (string, bool)) (map[string][]byte, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	secrets := make(map[string][]byte, len(t.Secrets))
	for id, env := range t.Secrets {
		v, ok := lookup(env)
		if !ok {
			return nil, fmt.Errorf("%w: target %q: secret %q: environment variable %s is not set", ErrDescriptorInvalid, t.Name, id, env)
		}
		secrets[id] = []byte(v)
	}
	return secrets, nil
}
