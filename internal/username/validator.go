// Package username validates and applies member username changes. Validation
// runs cheapest-first: format, no-op, local duplicate, then the remote
// duplicate probe, so the directory is only consulted once everything local
// has passed.
package username

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mlaa/commons-sync/internal/database/types"
	"go.uber.org/zap"
)

var (
	// ErrInvalidFormat indicates the candidate fails the username pattern.
	ErrInvalidFormat = errors.New("username must be 4-20 characters, start with a letter, and contain only lowercase letters, digits, and underscores")

	// ErrLocalDuplicate indicates another local member already holds the name.
	ErrLocalDuplicate = errors.New("username is already taken")

	// ErrRemoteDuplicate indicates the membership directory reports the name
	// as taken by another member.
	ErrRemoteDuplicate = errors.New("username is already taken in the membership directory")
)

// usernamePattern mirrors the directory's username rules.
var usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{3,19}$`)

// Directory is the slice of the membership API client the validator uses.
type Directory interface {
	IsDuplicateUsername(ctx context.Context, username string) (bool, error)
	ChangeUsername(ctx context.Context, externalID, newUsername string) error
}

// MemberStore is the member slice of the local store.
type MemberStore interface {
	GetMemberByUsername(ctx context.Context, username string) (*types.Member, error)
	RenameMember(ctx context.Context, externalID, username string) error
}

// Validator checks and applies username changes for local members.
type Validator struct {
	directory Directory
	members   MemberStore
	logger    *zap.Logger
}

// New creates a Validator.
func New(directory Directory, members MemberStore, logger *zap.Logger) *Validator {
	return &Validator{
		directory: directory,
		members:   members,
		logger:    logger.Named("username"),
	}
}

// Validate checks whether a member may take a new username. A case-only
// variation of the member's current name is always valid and skips the
// duplicate checks entirely.
func (v *Validator) Validate(ctx context.Context, member *types.Member, candidate string) error {
	if !usernamePattern.MatchString(candidate) {
		return fmt.Errorf("username %q: %w", candidate, ErrInvalidFormat)
	}

	if strings.EqualFold(candidate, member.Username) {
		return nil
	}

	existing, err := v.members.GetMemberByUsername(ctx, candidate)
	if err != nil && !errors.Is(err, types.ErrMemberNotFound) {
		return fmt.Errorf("username %q: %w", candidate, err)
	}

	if existing != nil && existing.ExternalID != member.ExternalID {
		return fmt.Errorf("username %q: %w", candidate, ErrLocalDuplicate)
	}

	taken, err := v.directory.IsDuplicateUsername(ctx, candidate)
	if err != nil {
		return fmt.Errorf("username %q: %w", candidate, err)
	}

	if taken {
		return fmt.Errorf("username %q: %w", candidate, ErrRemoteDuplicate)
	}

	return nil
}

// Rename validates the candidate, pushes it to the directory, then renames
// the member locally. The directory write comes first: a local-only rename
// would be silently reverted by the next profile sync.
func (v *Validator) Rename(ctx context.Context, member *types.Member, candidate string) error {
	if err := v.Validate(ctx, member, candidate); err != nil {
		return err
	}

	if candidate == member.Username {
		return nil
	}

	if err := v.directory.ChangeUsername(ctx, member.ExternalID, candidate); err != nil {
		return fmt.Errorf("username %q: %w", candidate, err)
	}

	if err := v.members.RenameMember(ctx, member.ExternalID, candidate); err != nil {
		return fmt.Errorf("username %q: %w", candidate, err)
	}

	v.logger.Info("Renamed member",
		zap.String("externalID", member.ExternalID),
		zap.String("from", member.Username),
		zap.String("to", candidate))

	return nil
}
