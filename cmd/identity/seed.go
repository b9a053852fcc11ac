package identity

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultSeed is the demo population shipped with the product: one admin,
// four teachers and three students.
func DefaultSeed() []Identity {
	return []Identity{
		{ID: "1", DisplayName: "Admin User", Email: "admin@skillforge.com", Role: RoleAdmin, Secret: "admin123"},
		{ID: "2", DisplayName: "John Teacher", Email: "teacher@skillforge.com", Role: RoleTeacher, Secret: "teacher123"},
		{ID: "3", DisplayName: "Jane Student", Email: "student@skillforge.com", Role: RoleStudent, Secret: "student123"},
		{ID: "4", DisplayName: "Sarah Johnson", Email: "sarah@skillforge.com", Role: RoleTeacher, Secret: "sarah456"},
		{ID: "5", DisplayName: "Michael Chen", Email: "michael@skillforge.com", Role: RoleTeacher, Secret: "michael789"},
		{ID: "6", DisplayName: "Emily Rodriguez", Email: "emily@skillforge.com", Role: RoleTeacher, Secret: "emily101"},
		{ID: "7", DisplayName: "David Wilson", Email: "david@skillforge.com", Role: RoleStudent, Secret: "david202"},
		{ID: "8", DisplayName: "Lisa Anderson", Email: "lisa@skillforge.com", Role: RoleStudent, Secret: "lisa303"},
	}
}

type seedFile struct {
	Identities []Identity `yaml:"identities"`
}

// ReadSeed decodes a YAML seed document:
//
//	identities:
//	  - id: "1"
//	    name: Admin User
//	    email: admin@example.com
//	    role: admin
//	    secret: admin123
//
// Unknown keys are rejected. Roles are validated later by Directory.Seed.
func ReadSeed(r io.Reader) ([]Identity, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f seedFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, OpError{Op: "identity.ReadSeed", Kind: ErrInvalidInput, Msg: "empty seed document"}
		}
		return nil, OpError{Op: "identity.ReadSeed", Kind: ErrInvalidInput, Msg: err.Error()}
	}
	if len(f.Identities) == 0 {
		return nil, OpError{Op: "identity.ReadSeed", Kind: ErrInvalidInput, Msg: "no identities"}
	}
	return f.Identities, nil
}

// LoadSeedFile reads a YAML seed file from disk.
func LoadSeedFile(path string) ([]Identity, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path.
	if err != nil {
		return nil, fmt.Errorf("identity: seed file: %w", err)
	}
	return ReadSeed(bytes.NewReader(raw))
}
