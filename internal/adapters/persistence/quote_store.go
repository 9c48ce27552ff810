package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

const (
	entityQuote = "quote"

	// decrementFloored never takes the counter below zero.
	decrementFloored = "CASE WHEN upvotes > 0 THEN upvotes - 1 ELSE 0 END"
)

// Compile-time interface checks.
var (
	_ ports.QuoteRepository = (*QuoteStore)(nil)
	_ ports.QuoteRanker     = (*QuoteStore)(nil)
	_ ports.HealthChecker   = (*QuoteStore)(nil)
)

// StoreConfig configures a QuoteStore.
type StoreConfig struct {
	// DB is an open gorm connection with the schema applied.
	DB *gorm.DB

	// Logger is an optional logger. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Clock returns the current time. If nil, time.Now is used.
	Clock func() time.Time
}

// QuoteStore implements the quote repository and ranking queries on gorm.
type QuoteStore struct {
	db      *gorm.DB
	dialect string
	logger  *slog.Logger
	now     func() time.Time
}

// NewQuoteStore creates a QuoteStore.
func NewQuoteStore(cfg StoreConfig) *QuoteStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &QuoteStore{
		db:      cfg.DB,
		dialect: cfg.DB.Dialector.Name(),
		logger:  logger.With(slog.String("component", "persistence.QuoteStore")),
		now:     now,
	}
}

// Name implements ports.HealthChecker.
func (s *QuoteStore) Name() string {
	return "database"
}

// Check implements ports.HealthChecker by pinging the connection pool.
func (s *QuoteStore) Check(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql.DB: %w", err)
	}

	return sqlDB.PingContext(ctx)
}

// Create implements ports.QuoteRepository.
func (s *QuoteStore) Create(ctx context.Context, quote domain.Quote) error {
	if quote.Name == "" {
		return domain.NewValidationError("name", "must not be empty")
	}

	if quote.Upvotes < 0 {
		return domain.NewValidationErrorWithValue("upvotes", "must not be negative", quote.Upvotes)
	}

	now := s.now().UTC()
	quote.RecordedAt = now

	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = now
	}

	rec := newQuoteRecord(quote)

	err := s.db.WithContext(ctx).Create(&rec).Error
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDuplicateKeyError(quote.Name)
		}

		return fmt.Errorf("creating quote: %w", err)
	}

	return nil
}

// Get implements ports.QuoteRepository.
func (s *QuoteStore) Get(ctx context.Context, name string) (domain.Quote, bool, error) {
	var rec quoteRecord

	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Quote{}, false, nil
	}

	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("getting quote: %w", err)
	}

	return rec.toDomain(), true, nil
}

// Delete implements ports.QuoteRepository. Upvotes go first so the foreign
// key holds at every statement.
func (s *QuoteStore) Delete(ctx context.Context, name string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quote_name = ?", name).Delete(&userUpvoteRecord{}).Error; err != nil {
			return err
		}

		res := tx.Where("name = ?", name).Delete(&quoteRecord{})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return domain.NewNotFoundError(entityQuote, name)
		}

		return nil
	})

	return s.translate("deleting quote", err)
}

// Rename implements ports.QuoteRepository.
func (s *QuoteStore) Rename(ctx context.Context, oldName, newName string) error {
	if newName == "" {
		return domain.NewValidationError("name", "must not be empty")
	}

	if oldName == newName {
		return nil
	}

	return s.EditFields(ctx, oldName, domain.QuoteEdit{NewName: &newName})
}

// EditFields implements ports.QuoteRepository. The whole edit, rename
// included, commits or rolls back as one serializable transaction.
func (s *QuoteStore) EditFields(ctx context.Context, name string, edit domain.QuoteEdit) error {
	edit = edit.Normalize()
	if edit.IsEmpty() {
		return nil
	}

	err := s.serializable(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&quoteRecord{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			return domain.NewNotFoundError(entityQuote, name)
		}

		target := name

		if edit.Renames(name) {
			if err := s.renameTx(tx, name, *edit.NewName); err != nil {
				return err
			}

			target = *edit.NewName
		}

		updates := map[string]any{}
		if edit.Content != nil {
			updates["content"] = *edit.Content
		}

		if edit.Culprit != nil {
			updates["culprit"] = *edit.Culprit
		}

		if edit.CreatedAt != nil {
			updates["created_at"] = Timestamp(*edit.CreatedAt)
		}

		if len(updates) == 0 {
			return nil
		}

		return tx.Model(&quoteRecord{}).Where("name = ?", target).Updates(updates).Error
	})
	if err == nil || isDomainError(err) {
		return err
	}

	if edit.NewName != nil && isUniqueViolation(err) {
		return domain.NewDuplicateKeyError(*edit.NewName)
	}

	s.logger.WarnContext(ctx, "quote edit rolled back",
		slog.String("quote", name),
		slog.Any("error", err),
	)

	return domain.NewIntegrityError("editing quote", err)
}

// renameTx re-keys the quote and re-points its upvotes. Foreign key checks
// are deferred to commit so the statement order does not matter.
func (s *QuoteStore) renameTx(tx *gorm.DB, oldName, newName string) error {
	var taken int64
	if err := tx.Model(&quoteRecord{}).Where("name = ?", newName).Count(&taken).Error; err != nil {
		return err
	}

	if taken > 0 {
		return domain.NewDuplicateKeyError(newName)
	}

	if err := s.deferForeignKeys(tx); err != nil {
		return fmt.Errorf("deferring foreign keys: %w", err)
	}

	res := tx.Model(&quoteRecord{}).Where("name = ?", oldName).Update("name", newName)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return domain.NewNotFoundError(entityQuote, oldName)
	}

	return tx.Model(&userUpvoteRecord{}).
		Where("quote_name = ?", oldName).
		Update("quote_name", newName).Error
}

// AttachMedia implements ports.QuoteRepository.
func (s *QuoteStore) AttachMedia(ctx context.Context, name, path string) error {
	return s.setFilePath(ctx, name, path)
}

// DetachMedia implements ports.QuoteRepository.
func (s *QuoteStore) DetachMedia(ctx context.Context, name string) error {
	return s.setFilePath(ctx, name, "")
}

func (s *QuoteStore) setFilePath(ctx context.Context, name, path string) error {
	res := s.db.WithContext(ctx).Model(&quoteRecord{}).Where("name = ?", name).Update("file_path", path)
	if res.Error != nil {
		return fmt.Errorf("updating media: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return domain.NewNotFoundError(entityQuote, name)
	}

	return nil
}

// Upvote implements ports.QuoteRepository. The counter update runs first
// and locks the quote row, so a concurrent rename either completes before
// (the vote then finds no quote) or after (and carries the vote along).
func (s *QuoteStore) Upvote(ctx context.Context, userID, quoteName string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&quoteRecord{}).
			Where("name = ?", quoteName).
			Update("upvotes", gorm.Expr("upvotes + 1"))
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return domain.NewNotFoundError(entityQuote, quoteName)
		}

		err := tx.Create(&userUpvoteRecord{UserID: userID, QuoteName: quoteName}).Error
		if err != nil && isUniqueViolation(err) {
			return domain.NewAlreadyVotedError(userID, quoteName)
		}

		return err
	})

	return s.translate("upvoting quote", err)
}

// RemoveUpvote implements ports.QuoteRepository.
func (s *QuoteStore) RemoveUpvote(ctx context.Context, userID, quoteName string) (bool, error) {
	removed := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND quote_name = ?", userID, quoteName).Delete(&userUpvoteRecord{})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return nil
		}

		removed = true

		return tx.Model(&quoteRecord{}).
			Where("name = ?", quoteName).
			Update("upvotes", gorm.Expr(decrementFloored)).Error
	})
	if err != nil {
		return false, s.translate("removing upvote", err)
	}

	return removed, nil
}

// HasVoted implements ports.QuoteRepository.
func (s *QuoteStore) HasVoted(ctx context.Context, userID, quoteName string) (bool, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&userUpvoteRecord{}).
		Where("user_id = ? AND quote_name = ?", userID, quoteName).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking upvote: %w", err)
	}

	return count > 0, nil
}

// DeleteStale implements ports.QuoteRepository. Age is measured from
// RecordedAt; the user supplied CreatedAt plays no part.
func (s *QuoteStore) DeleteStale(ctx context.Context, maxAge time.Duration, minUpvotes int) (int64, error) {
	cutoff := Timestamp(s.now().Add(-maxAge))

	var deleted int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&quoteRecord{}).
			Select("name").
			Where("upvotes <= ? AND recorded_at < ?", minUpvotes, cutoff)

		if err := tx.Where("quote_name IN (?)", stale).Delete(&userUpvoteRecord{}).Error; err != nil {
			return err
		}

		res := tx.Where("upvotes <= ? AND recorded_at < ?", minUpvotes, cutoff).Delete(&quoteRecord{})
		if res.Error != nil {
			return res.Error
		}

		deleted = res.RowsAffected

		return nil
	})
	if err != nil {
		return 0, s.translate("deleting stale quotes", err)
	}

	return deleted, nil
}

// serializable runs fn at the strictest isolation level. SQLite
// transactions are serializable already and its driver takes no options.
func (s *QuoteStore) serializable(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.dialect == DriverPostgres {
		return s.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *QuoteStore) deferForeignKeys(tx *gorm.DB) error {
	if s.dialect == DriverPostgres {
		return tx.Exec("SET CONSTRAINTS ALL DEFERRED").Error
	}

	return tx.Exec("PRAGMA defer_foreign_keys = ON").Error
}

// translate maps storage failures onto the domain taxonomy.
func (s *QuoteStore) translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isDomainError(err):
		return err
	case isSerializationFailure(err), isForeignKeyViolation(err):
		return domain.NewIntegrityError(op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
