package migrations

import (
	"context"
	"fmt"

	"github.com/mlaa/commons-sync/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []struct {
			model any
			name  string
		}{
			{(*types.Member)(nil), "members"},
			{(*types.MemberMeta)(nil), "member_metas"},
			{(*types.Group)(nil), "groups"},
			{(*types.GroupMeta)(nil), "group_metas"},
			{(*types.Membership)(nil), "memberships"},
			{(*types.SyncCursor)(nil), "sync_cursors"},
		}

		for _, m := range models {
			_, err := db.NewCreateTable().
				Model(m.model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %s: %w", m.name, err)
			}
		}

		// Memberships are looked up from both directions during syncs.
		indexes := []struct {
			name  string
			table string
			expr  string
		}{
			{"idx_memberships_group", "memberships", "(group_id)"},
			{"idx_memberships_member", "memberships", "(member_id)"},
			{"idx_groups_external", "groups", "(external_id)"},
			{"idx_members_username", "members", "(lower(username))"},
		}

		for _, idx := range indexes {
			_, err := db.ExecContext(ctx,
				fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s %s", idx.name, idx.table, idx.expr))
			if err != nil {
				return fmt.Errorf("failed to create index %s: %w", idx.name, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		tables := []string{
			"sync_cursors",
			"memberships",
			"group_metas",
			"groups",
			"member_metas",
			"members",
		}

		for _, table := range tables {
			if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return fmt.Errorf("failed to drop table %s: %w", table, err)
			}
		}

		return nil
	})
}
