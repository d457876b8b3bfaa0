package roster_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	syncer "github.com/mlaa/commons-sync/internal/sync"
	"github.com/mlaa/commons-sync/internal/worker/roster"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeLister struct {
	memberIDs []string
	groupIDs  []int64
}

func (l *fakeLister) GetStaleMemberIDs(_ context.Context, _ time.Time, limit int) ([]string, error) {
	if len(l.memberIDs) > limit {
		return l.memberIDs[:limit], nil
	}

	return l.memberIDs, nil
}

func (l *fakeLister) GetStaleGroupIDs(_ context.Context, _ time.Time, limit int) ([]int64, error) {
	if len(l.groupIDs) > limit {
		return l.groupIDs[:limit], nil
	}

	return l.groupIDs, nil
}

type fakeSyncer struct {
	mu         sync.Mutex
	members    []string
	groups     []int64
	memberErrs map[string]error
	groupErrs  map[int64]error
}

func (s *fakeSyncer) SyncMember(_ context.Context, externalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members = append(s.members, externalID)

	return true, s.memberErrs[externalID]
}

func (s *fakeSyncer) SyncGroup(_ context.Context, localID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups = append(s.groups, localID)

	return true, s.groupErrs[localID]
}

func newOptions() roster.Options {
	return roster.Options{
		UpdateInterval: time.Hour,
		SweepInterval:  time.Minute,
		Concurrency:    4,
		BatchSize:      50,
	}
}

func TestSweepSyncsAllStaleEntities(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{memberIDs: []string{"100", "200", "300"}, groupIDs: []int64{1, 2}}
	fs := &fakeSyncer{}

	w := roster.New(lister, fs, newOptions(), zap.NewNop())
	w.Sweep(t.Context())

	assert.ElementsMatch(t, []string{"100", "200", "300"}, fs.members)
	assert.ElementsMatch(t, []int64{1, 2}, fs.groups)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{memberIDs: []string{"100", "200"}, groupIDs: []int64{1}}
	fs := &fakeSyncer{
		memberErrs: map[string]error{"100": errors.New("directory down")},
		groupErrs:  map[int64]error{1: syncer.ErrExcluded},
	}

	w := roster.New(lister, fs, newOptions(), zap.NewNop())
	w.Sweep(t.Context())

	// One member failed and one group short-circuited, but every entity was
	// still attempted.
	assert.ElementsMatch(t, []string{"100", "200"}, fs.members)
	assert.ElementsMatch(t, []int64{1}, fs.groups)
}

func TestSweepRespectsBatchSize(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{memberIDs: []string{"100", "200", "300", "400"}}
	fs := &fakeSyncer{}

	opts := newOptions()
	opts.BatchSize = 2

	w := roster.New(lister, fs, opts, zap.NewNop())
	w.Sweep(t.Context())

	assert.Len(t, fs.members, 2)
}
