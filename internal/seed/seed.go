// Package seed applies a participant seed file at daemon startup.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"provcore/pkg/domain"
)

// File is the root structure of a participant seed file.
type File struct {
	Participants []Entry `yaml:"participants"`
}

// Entry names one participant to authorize.
type Entry struct {
	Identity string `yaml:"identity"`
	Role     string `yaml:"role"`
}

// Authorizer is the slice of the registry the seeder drives.
type Authorizer interface {
	AuthorizeParticipant(ctx context.Context, caller, target, role string) (domain.Participant, domain.Result, error)
}

// Summary reports what one Apply pass did.
type Summary struct {
	Authorized int
	Skipped    int
}

// Load parses and validates a seed file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed file: %w", err)
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for i, entry := range file.Participants {
		if strings.TrimSpace(entry.Identity) == "" {
			return File{}, fmt.Errorf("seed entry %d: identity is required", i)
		}
		if strings.TrimSpace(entry.Role) == "" {
			return File{}, fmt.Errorf("seed entry %d (%s): role is required", i, entry.Identity)
		}
	}
	return file, nil
}

// Apply authorizes every entry as admin. Entries already authorized
// are skipped, so repeated runs against a persistent store are
// idempotent. Any other failure aborts the pass.
func Apply(ctx context.Context, auth Authorizer, admin string, file File) (Summary, error) {
	var summary Summary
	for _, entry := range file.Participants {
		_, _, err := auth.AuthorizeParticipant(ctx, admin, entry.Identity, entry.Role)
		if err != nil {
			var already domain.ErrAlreadyAuthorized
			if errors.As(err, &already) {
				summary.Skipped++
				continue
			}
			return summary, fmt.Errorf("seed participant %s: %w", entry.Identity, err)
		}
		summary.Authorized++
	}
	return summary, nil
}
