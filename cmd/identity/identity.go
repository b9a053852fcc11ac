package identity

import "time"

// Identity is a registered principal.
//
// Secret holds whatever the configured SecretScheme sealed (plaintext by
// default). Values handed out by Directory have Secret cleared.
type Identity struct {
	ID          string    `json:"id" yaml:"id"`
	DisplayName string    `json:"name" yaml:"name"`
	Email       string    `json:"email" yaml:"email"`
	EmailNorm   string    `json:"email_norm" yaml:"-"`
	Role        Role      `json:"role" yaml:"role"`
	Secret      string    `json:"secret,omitempty" yaml:"secret,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at,omitempty"`
}

func (i Identity) public() Identity {
	i.Secret = ""
	return i
}

// credentialKey is the Verify lookup key. Role is part of the key, not a filter.
type credentialKey struct {
	emailNorm string
	role      Role
}

func (i Identity) credentialKey() credentialKey {
	return credentialKey{emailNorm: i.EmailNorm, role: i.Role}
}
