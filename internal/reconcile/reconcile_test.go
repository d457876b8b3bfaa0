package reconcile_test

import (
	"testing"

	"github.com/mlaa/commons-sync/internal/database/types/enum"
	"github.com/mlaa/commons-sync/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func roster(pairs map[string]enum.Role) map[string]enum.Role {
	return pairs
}

func TestReconcileIdenticalRostersIsEmpty(t *testing.T) {
	t.Parallel()

	r := reconcile.New(zap.NewNop())

	same := roster(map[string]enum.Role{
		"a": enum.RoleAdmin,
		"b": enum.RoleMember,
	})

	for _, groupType := range []enum.GroupType{enum.GroupTypeForum, enum.GroupTypeCommittee} {
		assert.Empty(t, r.Reconcile(same, same, groupType), groupType.String())
	}
}

func TestReconcileNewAdminAddedRemotely(t *testing.T) {
	t.Parallel()

	r := reconcile.New(zap.NewNop())

	mutations := r.Reconcile(
		roster(map[string]enum.Role{}),
		roster(map[string]enum.Role{"x": enum.RoleAdmin}),
		enum.GroupTypeCommittee,
	)

	// Add must precede promote: a key that was never added cannot be promoted.
	assert.Equal(t, []reconcile.Mutation{
		{Op: reconcile.OpAdd, Key: "x"},
		{Op: reconcile.OpPromote, Key: "x"},
	}, mutations)
}

func TestReconcileForumCommitteeAsymmetry(t *testing.T) {
	t.Parallel()

	r := reconcile.New(zap.NewNop())

	local := roster(map[string]enum.Role{
		"a": enum.RoleAdmin,
		"b": enum.RoleMember,
	})
	remote := roster(map[string]enum.Role{})

	// Forum: membership is sticky, only the stale admin is demoted.
	forum := r.Reconcile(local, remote, enum.GroupTypeForum)
	assert.Equal(t, []reconcile.Mutation{
		{Op: reconcile.OpDemote, Key: "a"},
	}, forum)

	// Committee: the external roster is authoritative, both are removed.
	committee := r.Reconcile(local, remote, enum.GroupTypeCommittee)
	assert.ElementsMatch(t, []reconcile.Mutation{
		{Op: reconcile.OpRemove, Key: "a"},
		{Op: reconcile.OpRemove, Key: "b"},
	}, committee)
}

func TestReconcileRoleChanges(t *testing.T) {
	t.Parallel()

	r := reconcile.New(zap.NewNop())

	tests := []struct {
		name      string
		localRole enum.Role
		remote    enum.Role
		want      []reconcile.Mutation
	}{
		{
			name:      "promote member to admin",
			localRole: enum.RoleMember,
			remote:    enum.RoleAdmin,
			want:      []reconcile.Mutation{{Op: reconcile.OpPromote, Key: "a"}},
		},
		{
			name:      "demote admin to member",
			localRole: enum.RoleAdmin,
			remote:    enum.RoleMember,
			want:      []reconcile.Mutation{{Op: reconcile.OpDemote, Key: "a"}},
		},
		{
			name:      "local mod counts as member for diffing",
			localRole: enum.RoleMod,
			remote:    enum.RoleMember,
			want:      nil,
		},
		{
			name:      "local mod promoted when remote is admin",
			localRole: enum.RoleMod,
			remote:    enum.RoleAdmin,
			want:      []reconcile.Mutation{{Op: reconcile.OpPromote, Key: "a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mutations := r.Reconcile(
				roster(map[string]enum.Role{"a": tt.localRole}),
				roster(map[string]enum.Role{"a": tt.remote}),
				enum.GroupTypeCommittee,
			)
			assert.Equal(t, tt.want, mutations)
		})
	}
}

func TestReconcileConvergence(t *testing.T) {
	t.Parallel()

	r := reconcile.New(zap.NewNop())

	local := roster(map[string]enum.Role{
		"a": enum.RoleAdmin,
		"b": enum.RoleMember,
		"c": enum.RoleMember,
		"d": enum.RoleAdmin,
	})
	remote := roster(map[string]enum.Role{
		"b": enum.RoleAdmin,
		"c": enum.RoleMember,
		"e": enum.RoleAdmin,
	})

	for _, groupType := range []enum.GroupType{enum.GroupTypeForum, enum.GroupTypeCommittee} {
		t.Run(groupType.String(), func(t *testing.T) {
			t.Parallel()

			mutations := r.Reconcile(local, remote, groupType)
			converged := reconcile.Apply(local, mutations)

			// Applying the mutation list leaves nothing further to do.
			assert.Empty(t, r.Reconcile(converged, remote, groupType))

			if groupType == enum.GroupTypeCommittee {
				assert.Equal(t, remote, converged)
			} else {
				// Forum keeps "a" and "d" as plain members.
				assert.Equal(t, enum.RoleMember, converged["a"])
				assert.Equal(t, enum.RoleMember, converged["d"])
			}
		})
	}
}

func TestReconcileSkipsEmptyKeys(t *testing.T) {
	t.Parallel()

	r := reconcile.New(zap.NewNop())

	mutations := r.Reconcile(
		roster(map[string]enum.Role{"": enum.RoleAdmin}),
		roster(map[string]enum.Role{"": enum.RoleAdmin, "a": enum.RoleMember}),
		enum.GroupTypeCommittee,
	)

	assert.Equal(t, []reconcile.Mutation{{Op: reconcile.OpAdd, Key: "a"}}, mutations)
}

func TestReconcileDeterministicOrder(t *testing.T) {
	t.Parallel()

	r := reconcile.New(zap.NewNop())

	remote := roster(map[string]enum.Role{
		"c": enum.RoleMember,
		"a": enum.RoleMember,
		"b": enum.RoleMember,
	})

	mutations := r.Reconcile(roster(map[string]enum.Role{}), remote, enum.GroupTypeForum)
	assert.Equal(t, []reconcile.Mutation{
		{Op: reconcile.OpAdd, Key: "a"},
		{Op: reconcile.OpAdd, Key: "b"},
		{Op: reconcile.OpAdd, Key: "c"},
	}, mutations)
}
