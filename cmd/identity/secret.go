package identity

import (
	"crypto/subtle"
	"strings"

	"skillforge/cmd/security/password"
)

// SecretScheme is the single place secrets are sealed and compared.
//
// PlaintextScheme stores secrets as given, as the SkillForge demo always has;
// Argon2idScheme seals them. Changing schemes on an existing
// store is a behavior change: identities persisted under one scheme are
// re-sealed on Load only when the new scheme can recognise them as unsealed.
type SecretScheme interface {
	Name() string
	Seal(secret string) (string, error)
	Match(sealed, secret string) bool
	// Sealed reports whether stored was produced by this scheme.
	Sealed(stored string) bool
}

const (
	SchemePlaintext = "plaintext"
	SchemeArgon2id  = "argon2id"
)

// PlaintextScheme keeps secrets unhashed.
type PlaintextScheme struct{}

func (PlaintextScheme) Name() string { return SchemePlaintext }

func (PlaintextScheme) Seal(secret string) (string, error) { return secret, nil }

func (PlaintextScheme) Match(sealed, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(sealed), []byte(secret)) == 1
}

func (PlaintextScheme) Sealed(string) bool { return true }

// Argon2idScheme seals secrets with password.Config.
type Argon2idScheme struct {
	Config password.Config
}

func (Argon2idScheme) Name() string { return SchemeArgon2id }

func (s Argon2idScheme) Seal(secret string) (string, error) {
	return s.Config.Hash(secret)
}

func (s Argon2idScheme) Match(sealed, secret string) bool {
	ok, err := s.Config.Verify(sealed, secret)
	return err == nil && ok
}

func (Argon2idScheme) Sealed(stored string) bool { return password.IsEncoded(stored) }

// SchemeByName resolves a configured scheme name. Empty means plaintext.
func SchemeByName(name string, cfg password.Config) (SecretScheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SchemePlaintext:
		return PlaintextScheme{}, nil
	case SchemeArgon2id:
		return Argon2idScheme{Config: cfg}, nil
	default:
		return nil, OpError{Op: "identity.SchemeByName", Kind: ErrInvalidInput, Msg: "unknown secret scheme " + name}
	}
}
