// Package identity implements the credential side of the SkillForge directory.
//
// It owns the Identity model, role parsing, email canonicalization, the error
// kinds shared by every directory component, and Directory: the role-partitioned
// credential store that enforces email uniqueness and answers (email, role)
// credential lookups.
//
// Secret comparison is isolated behind SecretScheme. The default scheme keeps
// secrets in plaintext, matching the SkillForge web client;
// Argon2idScheme is available as an explicit, opt-in behavior change.
package identity
