// Package password holds the secret policy and the optional Argon2id sealing used
// by the directory.
//
// It provides:
//   - Policy validation (length bounds, optional very-weak rejection), used by
//     signup to decide whether a secret is too weak
//   - Argon2id hashing in a PHC-like encoded string format, used only when the
//     argon2id secret scheme is enabled
//   - Strict hash decoding with anti-DoS bounds during Verify
package password
