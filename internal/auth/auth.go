// Package auth verifies member credentials against the external membership
// directory and mirrors the verified profile into the local store.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mlaa/commons-sync/internal/database/types"
	"github.com/mlaa/commons-sync/internal/database/types/enum"
	"github.com/mlaa/commons-sync/internal/mla"
	"go.uber.org/zap"
)

// Directory is the credential-checking slice of the membership API client.
type Directory interface {
	GetMemberWithAuth(ctx context.Context, idOrUsername, password string) (*mla.MemberRecord, error)
}

// MemberStore persists verified member profiles.
type MemberStore interface {
	UpsertMember(ctx context.Context, member *types.Member) error
	GetMemberByExternalID(ctx context.Context, externalID string) (*types.Member, error)
}

// Syncer kicks off a roster sync for a freshly authenticated member.
type Syncer interface {
	SyncMember(ctx context.Context, externalID string) (bool, error)
}

// Authenticator validates credentials and keeps the local profile current.
type Authenticator struct {
	directory Directory
	members   MemberStore
	syncer    Syncer
	logger    *zap.Logger
}

// New creates an Authenticator. The syncer may be nil, in which case login
// does not trigger a roster sync.
func New(directory Directory, members MemberStore, syncer Syncer, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		directory: directory,
		members:   members,
		syncer:    syncer,
		logger:    logger.Named("auth"),
	}
}

// Authenticate verifies a member's credentials with the directory and returns
// the local member record. An invalid password surfaces as
// mla.ErrInvalidCredentials and a lapsed membership as
// mla.ErrInactiveMembership; both wrap mla.ErrAuthentication so callers can
// treat them uniformly or distinguish them for messaging.
//
// A successful login refreshes the local profile and kicks off a roster sync;
// sync failures are logged, never surfaced, since the member already proved
// who they are.
func (a *Authenticator) Authenticate(ctx context.Context, idOrUsername, password string) (*types.Member, error) {
	record, err := a.directory.GetMemberWithAuth(ctx, idOrUsername, password)
	if err != nil {
		if errors.Is(err, mla.ErrInvalidCredentials) {
			a.logger.Info("Rejected login with invalid credentials",
				zap.String("idOrUsername", idOrUsername))
		}

		return nil, err
	}

	if enum.ParseMemberStatus(record.Status) != enum.MemberStatusActive {
		a.logger.Info("Rejected login for inactive membership",
			zap.String("externalID", record.ID),
			zap.String("status", record.Status))

		return nil, fmt.Errorf("member %q: %w: %w", idOrUsername, mla.ErrAuthentication, mla.ErrInactiveMembership)
	}

	if err := a.members.UpsertMember(ctx, &types.Member{
		ExternalID: record.ID,
		Username:   record.Username,
		Status:     enum.ParseMemberStatus(record.Status),
		Name:       record.Name,
		Email:      record.Email,
	}); err != nil {
		return nil, fmt.Errorf("member %q: %w", idOrUsername, err)
	}

	if a.syncer != nil {
		if _, err := a.syncer.SyncMember(ctx, record.ID); err != nil {
			a.logger.Warn("Post-login roster sync failed",
				zap.String("externalID", record.ID),
				zap.Error(err))
		}
	}

	member, err := a.members.GetMemberByExternalID(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("member %q: %w", idOrUsername, err)
	}

	return member, nil
}
