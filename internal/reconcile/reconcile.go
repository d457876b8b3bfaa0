// Package reconcile computes the mutations needed to converge a local group
// roster onto the external directory's roster. The policy is asymmetric by
// group type: committee rosters are fully authoritative, forum membership is
// sticky and only leadership is reconciled.
package reconcile

import (
	"sort"

	"github.com/mlaa/commons-sync/internal/database/types/enum"
	"go.uber.org/zap"
)

// Op is a roster mutation operation.
type Op int

const (
	// OpAdd joins a member to the group with the default member role.
	OpAdd Op = iota
	// OpRemove removes a member from the group entirely.
	OpRemove
	// OpPromote raises a member to admin.
	OpPromote
	// OpDemote lowers an admin back to member.
	OpDemote
)

// String returns the lowercase name of the operation.
func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpPromote:
		return "promote"
	case OpDemote:
		return "demote"
	default:
		return "unknown"
	}
}

// Mutation is one ordered roster change keyed by member id.
type Mutation struct {
	Op  Op
	Key string
}

// Reconciler computes roster deltas. It holds no state beyond its logger.
type Reconciler struct {
	logger *zap.Logger
}

// New creates a Reconciler.
func New(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logger.Named("reconciler")}
}

// Reconcile returns the ordered mutation list that converges local onto
// remote under the group type's policy. Both rosters are iterated in sorted
// key order so the output is deterministic. Neither input map is modified.
//
// Forward pass: every remote entry is ensured locally, with an Add emitted
// before any Promote for the same key (a key that was never added cannot be
// promoted). Reverse pass: local entries absent remotely are removed for
// committees but only demoted (if admin) for forums, since forum membership
// may be locally initiated.
func (r *Reconciler) Reconcile(local, remote map[string]enum.Role, groupType enum.GroupType) []Mutation {
	var mutations []Mutation

	for _, key := range sortedKeys(remote) {
		if key == "" {
			r.logger.Warn("Skipping remote roster entry with empty key")
			continue
		}

		remoteRole := remote[key]

		localRole, exists := local[key]
		if !exists {
			mutations = append(mutations, Mutation{Op: OpAdd, Key: key})
			localRole = enum.RoleMember
		}

		switch {
		case remoteRole.IsAdmin() && !localRole.IsAdmin():
			mutations = append(mutations, Mutation{Op: OpPromote, Key: key})
		case !remoteRole.IsAdmin() && localRole.IsAdmin():
			mutations = append(mutations, Mutation{Op: OpDemote, Key: key})
		}
	}

	for _, key := range sortedKeys(local) {
		if key == "" {
			r.logger.Warn("Skipping local roster entry with empty key")
			continue
		}

		if _, exists := remote[key]; exists {
			continue
		}

		switch groupType {
		case enum.GroupTypeForum:
			// Forum membership is sticky; only stale admin rights come off.
			if local[key].IsAdmin() {
				mutations = append(mutations, Mutation{Op: OpDemote, Key: key})
			}
		case enum.GroupTypeCommittee:
			mutations = append(mutations, Mutation{Op: OpRemove, Key: key})
		default:
			r.logger.Warn("Refusing to reconcile unknown group type",
				zap.String("key", key),
				zap.Stringer("groupType", groupType))
		}
	}

	return mutations
}

// Apply plays a mutation list onto a roster and returns the result. The
// input roster is not modified. Reconcile followed by Apply followed by
// Reconcile yields no further mutations, which is the convergence property
// the orchestrator relies on.
func Apply(roster map[string]enum.Role, mutations []Mutation) map[string]enum.Role {
	result := make(map[string]enum.Role, len(roster))
	for key, role := range roster {
		result[key] = role
	}

	for _, m := range mutations {
		switch m.Op {
		case OpAdd:
			result[m.Key] = enum.RoleMember
		case OpRemove:
			delete(result, m.Key)
		case OpPromote:
			result[m.Key] = enum.RoleAdmin
		case OpDemote:
			result[m.Key] = enum.RoleMember
		}
	}

	return result
}

func sortedKeys(roster map[string]enum.Role) []string {
	keys := make([]string, 0, len(roster))
	for key := range roster {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
