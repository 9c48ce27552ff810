package persistence

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/platform/config"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*QuoteStore, *fakeClock) {
	t.Helper()

	db, err := Open(&config.DatabaseConfig{
		Driver:       DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "quotes.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, discardLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(context.Background(), db))

	clock := &fakeClock{now: time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)}

	return NewQuoteStore(StoreConfig{DB: db, Logger: discardLogger(), Clock: clock.Now}), clock
}

func mustCreate(t *testing.T, s *QuoteStore, name string) {
	t.Helper()

	require.NoError(t, s.Create(context.Background(), domain.Quote{
		Name:    name,
		Content: "content of " + name,
		Culprit: "Robin",
	}))
}

func upvotesOf(t *testing.T, s *QuoteStore, name string) int {
	t.Helper()

	q, found, err := s.Get(context.Background(), name)
	require.NoError(t, err)
	require.True(t, found, "quote %q should exist", name)

	return q.Upvotes
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "q.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("q.db"))
	assert.Equal(t, "file:q.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file:q.db?mode=rwc"))
	assert.Equal(t, "q.db?_pragma=journal_mode(WAL)", sqliteDSN("q.db?_pragma=journal_mode(WAL)"))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle"}, discardLogger())
	require.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestTimestamp_RoundTrip(t *testing.T) {
	original := time.Date(2024, time.February, 29, 23, 59, 58, 123456789, time.FixedZone("CET", 3600))

	value, err := Timestamp(original).Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29T22:59:58.123456789Z", value)

	var scanned Timestamp
	require.NoError(t, scanned.Scan(value))
	assert.True(t, original.Equal(scanned.Time()))

	require.NoError(t, scanned.Scan([]byte("2024-01-01T00:00:00Z")))
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), scanned.Time())

	require.Error(t, scanned.Scan(42))
	require.Error(t, scanned.Scan("yesterday"))
}

func TestTimestamp_LexicalOrderMatchesTime(t *testing.T) {
	early, _ := Timestamp(time.Date(2024, time.January, 9, 0, 0, 0, 5, time.UTC)).Value()
	late, _ := Timestamp(time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)).Value()

	assert.Less(t, early.(string), late.(string))
}

func TestCreate(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()
	said := time.Date(2023, time.March, 3, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, domain.Quote{Name: "Monday", Content: "Never again", Culprit: "Jo", CreatedAt: said}))

	q, found, err := s.Get(ctx, "Monday")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Never again", q.Content)
	assert.Equal(t, "Jo", q.Culprit)
	assert.Equal(t, 0, q.Upvotes)
	assert.True(t, said.Equal(q.CreatedAt))
	assert.True(t, clock.Now().Equal(q.RecordedAt))

	t.Run("media stored with the quote", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, domain.Quote{Name: "Tuesday", Content: "c", Culprit: "Jo", FilePath: "media/tue.png"}))

		q, _, err := s.Get(ctx, "Tuesday")
		require.NoError(t, err)
		assert.Equal(t, "media/tue.png", q.FilePath)
	})

	t.Run("duplicate name", func(t *testing.T) {
		err := s.Create(ctx, domain.Quote{Name: "Monday"})
		require.ErrorIs(t, err, domain.ErrDuplicateKey)
	})

	t.Run("name is case sensitive", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, domain.Quote{Name: "monday"}))
	})

	t.Run("empty name", func(t *testing.T) {
		err := s.Create(ctx, domain.Quote{Name: ""})
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("created at defaults to now", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, domain.Quote{Name: "undated"}))

		q, _, err := s.Get(ctx, "undated")
		require.NoError(t, err)
		assert.True(t, clock.Now().Equal(q.CreatedAt))
	})

	t.Run("seeded upvotes", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, domain.Quote{Name: "imported", Upvotes: 4}))
		assert.Equal(t, 4, upvotesOf(t, s, "imported"))
	})
}

func TestGet_Missing(t *testing.T) {
	s, _ := newTestStore(t)

	q, found, err := s.Get(context.Background(), "ghost")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, domain.Quote{}, q)
}

func TestDelete_RemovesUpvotes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "doomed")
	require.NoError(t, s.Upvote(ctx, "u1", "doomed"))
	require.NoError(t, s.Upvote(ctx, "u2", "doomed"))

	require.NoError(t, s.Delete(ctx, "doomed"))

	_, found, err := s.Get(ctx, "doomed")
	require.NoError(t, err)
	assert.False(t, found)

	voted, err := s.HasVoted(ctx, "u1", "doomed")
	require.NoError(t, err)
	assert.False(t, voted)

	err = s.Delete(ctx, "doomed")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpvote(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "q")

	require.NoError(t, s.Upvote(ctx, "alice", "q"))
	assert.Equal(t, 1, upvotesOf(t, s, "q"))

	err := s.Upvote(ctx, "alice", "q")
	require.ErrorIs(t, err, domain.ErrAlreadyVoted)
	assert.Equal(t, 1, upvotesOf(t, s, "q"), "failed vote must not move the counter")

	voted, err := s.HasVoted(ctx, "alice", "q")
	require.NoError(t, err)
	assert.True(t, voted)

	err = s.Upvote(ctx, "alice", "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveUpvote(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "q")
	require.NoError(t, s.Upvote(ctx, "alice", "q"))

	removed, err := s.RemoveUpvote(ctx, "alice", "q")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, upvotesOf(t, s, "q"))

	removed, err = s.RemoveUpvote(ctx, "alice", "q")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 0, upvotesOf(t, s, "q"), "counter never goes negative")

	removed, err = s.RemoveUpvote(ctx, "bob", "missing")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRemoveUpvote_FloorsSeededCounter(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "q")
	require.NoError(t, s.Upvote(ctx, "alice", "q"))
	require.NoError(t, s.db.Model(&quoteRecord{}).Where("name = ?", "q").Update("upvotes", 0).Error)

	removed, err := s.RemoveUpvote(ctx, "alice", "q")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, upvotesOf(t, s, "q"))
}

func TestVoteSequences_CounterMatchesMembership(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "q")

	steps := []struct {
		user string
		up   bool
	}{
		{"a", true}, {"b", true}, {"a", true}, {"c", true}, {"b", false},
		{"b", false}, {"d", false}, {"a", false}, {"b", true}, {"c", true},
	}

	active := map[string]bool{}
	for _, step := range steps {
		if step.up {
			err := s.Upvote(ctx, step.user, "q")
			if active[step.user] {
				require.ErrorIs(t, err, domain.ErrAlreadyVoted)
			} else {
				require.NoError(t, err)
			}

			active[step.user] = true
		} else {
			_, err := s.RemoveUpvote(ctx, step.user, "q")
			require.NoError(t, err)

			delete(active, step.user)
		}

		assert.Equal(t, len(active), upvotesOf(t, s, "q"))
	}
}

func TestUpvote_ConcurrentDistinctUsers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "popular")

	const voters = 20

	var wg sync.WaitGroup

	errs := make(chan error, voters)

	for i := range voters {
		wg.Add(1)

		go func(user string) {
			defer wg.Done()

			errs <- s.Upvote(ctx, user, "popular")
		}(fmt.Sprintf("user-%d", i))
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, voters, upvotesOf(t, s, "popular"))
}

func TestRename_CarriesVotes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "old")
	require.NoError(t, s.Upvote(ctx, "alice", "old"))

	require.NoError(t, s.Rename(ctx, "old", "new"))

	_, found, err := s.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found)

	q, found, err := s.Get(ctx, "new")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "content of old", q.Content)
	assert.Equal(t, 1, q.Upvotes)

	votedNew, err := s.HasVoted(ctx, "alice", "new")
	require.NoError(t, err)
	assert.True(t, votedNew)

	votedOld, err := s.HasVoted(ctx, "alice", "old")
	require.NoError(t, err)
	assert.False(t, votedOld)
}

func TestRename_Errors(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "a")
	mustCreate(t, s, "b")
	require.NoError(t, s.Upvote(ctx, "alice", "a"))

	err := s.Rename(ctx, "a", "b")
	require.ErrorIs(t, err, domain.ErrDuplicateKey)
	assert.Equal(t, 1, upvotesOf(t, s, "a"), "failed rename leaves state untouched")

	err = s.Rename(ctx, "ghost", "c")
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = s.Rename(ctx, "a", "")
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, s.Rename(ctx, "a", "a"))
}

func TestRename_RacingUpvote(t *testing.T) {
	for round := range 10 {
		t.Run(fmt.Sprintf("round %d", round), func(t *testing.T) {
			s, _ := newTestStore(t)
			ctx := context.Background()

			mustCreate(t, s, "old")

			var (
				wg        sync.WaitGroup
				renameErr error
				voteErr   error
			)

			wg.Add(2)

			go func() {
				defer wg.Done()

				renameErr = s.Rename(ctx, "old", "new")
			}()

			go func() {
				defer wg.Done()

				voteErr = s.Upvote(ctx, "alice", "old")
			}()

			wg.Wait()

			require.NoError(t, renameErr)

			votedNew, err := s.HasVoted(ctx, "alice", "new")
			require.NoError(t, err)

			if voteErr == nil {
				assert.True(t, votedNew, "vote landed before rename and must be carried over")
				assert.Equal(t, 1, upvotesOf(t, s, "new"))
			} else {
				require.ErrorIs(t, voteErr, domain.ErrNotFound)
				assert.False(t, votedNew)
				assert.Equal(t, 0, upvotesOf(t, s, "new"))
			}

			votedOld, err := s.HasVoted(ctx, "alice", "old")
			require.NoError(t, err)
			assert.False(t, votedOld)
		})
	}
}

func TestEditFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "draft")
	require.NoError(t, s.Upvote(ctx, "alice", "draft"))

	newName := "final"
	content := "polished"
	culprit := "Morgan"
	said := time.Date(2022, time.August, 8, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.EditFields(ctx, "draft", domain.QuoteEdit{
		NewName:   &newName,
		Content:   &content,
		Culprit:   &culprit,
		CreatedAt: &said,
	}))

	q, found, err := s.Get(ctx, "final")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "polished", q.Content)
	assert.Equal(t, "Morgan", q.Culprit)
	assert.True(t, said.Equal(q.CreatedAt))
	assert.Equal(t, 1, q.Upvotes)

	voted, err := s.HasVoted(ctx, "alice", "final")
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestEditFields_PartialAndNoop(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "q")

	empty := ""
	content := "changed"

	require.NoError(t, s.EditFields(ctx, "q", domain.QuoteEdit{Content: &content, Culprit: &empty}))

	q, _, err := s.Get(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "changed", q.Content)
	assert.Equal(t, "Robin", q.Culprit, "empty fields are not applied")

	require.NoError(t, s.EditFields(ctx, "q", domain.QuoteEdit{}))
	require.NoError(t, s.EditFields(ctx, "ghost", domain.QuoteEdit{}), "empty edit is a no-op even for a missing quote")

	err = s.EditFields(ctx, "ghost", domain.QuoteEdit{Content: &content})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEditFields_RenameCollisionRollsBackAllFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "a")
	mustCreate(t, s, "b")

	taken := "b"
	content := "should not stick"

	err := s.EditFields(ctx, "a", domain.QuoteEdit{NewName: &taken, Content: &content})
	require.ErrorIs(t, err, domain.ErrDuplicateKey)

	q, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "content of a", q.Content)
}

func TestMedia(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "clip")

	require.NoError(t, s.AttachMedia(ctx, "clip", "media/clip.ogg"))

	q, _, err := s.Get(ctx, "clip")
	require.NoError(t, err)
	assert.Equal(t, "media/clip.ogg", q.FilePath)

	require.NoError(t, s.DetachMedia(ctx, "clip"))

	q, _, err = s.Get(ctx, "clip")
	require.NoError(t, err)
	assert.False(t, q.HasMedia())

	require.ErrorIs(t, s.AttachMedia(ctx, "ghost", "x"), domain.ErrNotFound)
}

func TestDeleteStale(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()
	now := clock.Now()

	createAt := func(name string, age time.Duration) {
		clock.Set(now.Add(-age))
		mustCreate(t, s, name)
	}

	day := 24 * time.Hour

	createAt("old-unloved", 15*day)
	createAt("recent-unloved", 13*day)
	createAt("old-loved", 20*day)
	clock.Set(now)

	require.NoError(t, s.Upvote(ctx, "fan", "old-loved"))

	deleted, err := s.DeleteStale(ctx, 14*day, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	for name, want := range map[string]bool{
		"old-unloved":    false,
		"recent-unloved": true,
		"old-loved":      true,
	} {
		_, found, err := s.Get(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, want, found, name)
	}

	deleted, err = s.DeleteStale(ctx, 14*day, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted, "second sweep finds nothing")
}

func TestDeleteStale_IgnoresCreatedAt(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, domain.Quote{
		Name:      "ancient saying",
		CreatedAt: time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC),
	}))

	deleted, err := s.DeleteStale(ctx, 14*24*time.Hour, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestCheck(t *testing.T) {
	s, _ := newTestStore(t)

	assert.Equal(t, "database", s.Name())
	require.NoError(t, s.Check(context.Background()))
}
