package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

const (

	// Environment variables holding registry credentials.
	UsernameEnv = "REGISTRY_USERNAME"
	PasswordEnv = "REGISTRY_PASSWORD"
)

// Verifies that a keychain grants push access to a repository.
type PermissionChecker func(ref name.Reference, kc authn.Keychain) error

// Resolves registry credentials and verifies push access.
type Authenticator struct {
	lookup   func(string) (string, bool) // Environment lookup.
	keychain authn.Keychain              // Credential store consulted after the environment.
	prompter Prompter                    // Asks for credentials; nil disables prompting.
	check    PermissionChecker           // Verifies push access.
}

// Creates an [Authenticator] reading the process environment and the Docker
// credential store, prompting on the controlling terminal when available.
func NewAuthenticator() *Authenticator {
	a := &Authenticator{
		lookup:   os.LookupEnv,
		keychain: authn.DefaultKeychain,
		check: func(ref name.Reference, kc authn.Keychain) error {
			return remote.CheckPushPermission(ref, kc, http.DefaultTransport)
		},
	}
	if p := NewTermPrompter(); p != nil {
		a.prompter = p
	}
	return a
}

// Replaces the environment lookup.
func (a *Authenticator) WithLookup(lookup func(string) (string, bool)) *Authenticator {
	a.lookup = lookup
	return a
}

// Replaces the credential store.
func (a *Authenticator) WithKeychain(kc authn.Keychain) *Authenticator {
	a.keychain = kc
	return a
}

// Replaces the prompter. A nil prompter disables prompting.
func (a *Authenticator) WithPrompter(p Prompter) *Authenticator {
	a.prompter = p
	return a
}

// Replaces the push permission check.
func (a *Authenticator) WithChecker(check PermissionChecker) *Authenticator {
	a.check = check
	return a
}

// Returns a keychain able to push every tag.
//
// Credentials are resolved once per distinct registry and push permission
// is checked once per distinct repository. Any failure wraps
// [ErrAuthenticationFailed].
func (a *Authenticator) Authenticate(ctx context.Context, tags []string) (authn.Keychain, error) {
	refs, err := parseTags(tags)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	static := staticKeychain{}
	for _, ref := range refs {
		reg := ref.Context().Registry
		if _, ok := static[reg.RegistryStr()]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		}

		auth, source, err := a.resolve(reg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrAuthenticationFailed, reg.RegistryStr(), err)
		}
		static[reg.RegistryStr()] = auth
		slog.Debug("registry credentials resolved", "registry", reg.RegistryStr(), "source", source)
	}

	kc := authn.NewMultiKeychain(static, a.keychain)

	checked := map[string]struct{}{}
	for _, ref := range refs {
		repo := ref.Context().Name()
		if _, ok := checked[repo]; ok {
			continue
		}
		checked[repo] = struct{}{}

		if err := a.check(ref, kc); err != nil {
			return nil, fmt.Errorf("%w: push to %s denied: %w", ErrAuthenticationFailed, repo, err)
		}
		slog.Info("registry push permitted", "repository", repo)
	}

	return kc, nil
}

// Resolves credentials for a registry, reporting where they came from.
func (a *Authenticator) resolve(reg name.Registry) (authn.Authenticator, string, error) {
	user, _ := a.lookup(UsernameEnv)
	pass, _ := a.lookup(PasswordEnv)
	if user != "" && pass != "" {
		return &authn.Basic{Username: user, Password: pass}, "environment", nil
	}

	auth, err := a.keychain.Resolve(reg)
	if err != nil {
		return nil, "", err
	}
	if auth != authn.Anonymous {
		return auth, "credential store", nil
	}

	if a.prompter == nil {
		return authn.Anonymous, "anonymous", nil
	}

	creds, err := a.prompter.Prompt(reg.RegistryStr())
	if err != nil {
		return nil, "", err
	}
	if creds.Username == "" {
		return authn.Anonymous, "anonymous", nil
	}
	return &authn.Basic{Username: creds.Username, Password: creds.Password}, "prompt", nil
}

// Credentials resolved before the credential store, keyed by registry.
type staticKeychain map[string]authn.Authenticator

// Implements [authn.Keychain].
func (k staticKeychain) Resolve(r authn.Resource) (authn.Authenticator, error) {
	if auth, ok := k[r.RegistryStr()]; ok {
		return auth, nil
	}
	return authn.Anonymous, nil
}

// Parses tags into references, rejecting anything that is not a tag.
func parseTags(tags []string) ([]name.Tag, error) {
	refs := make([]name.Tag, 0, len(tags))
	for _, t := range tags {
		tag, err := name.NewTag(strings.TrimSpace(t))
		if err != nil {
			return nil, err
		}
		refs = append(refs, tag)
	}
	return refs, nil
}
