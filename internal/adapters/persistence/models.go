package persistence

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/jsamuelsen/quotebook/internal/domain"
)

// timestampLayout is fixed-width UTC so lexical order equals time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamp persists a time as sortable ISO-8601 text.
type Timestamp time.Time

// Value implements driver.Valuer.
func (t Timestamp) Value() (driver.Value, error) {
	return time.Time(t).UTC().Format(timestampLayout), nil
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = Timestamp{}
		return nil
	case time.Time:
		*t = Timestamp(v.UTC())
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("scanning timestamp: unsupported type %T", src)
	}
}

func (t *Timestamp) parse(s string) error {
	parsed, err := time.Parse(timestampLayout, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("scanning timestamp %q: %w", s, err)
		}
	}

	*t = Timestamp(parsed.UTC())

	return nil
}

// Time returns the timestamp as time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// quoteRecord is the quotes table row.
type quoteRecord struct {
	Name       string    `gorm:"column:name;primaryKey"`
	Content    string    `gorm:"column:content"`
	Culprit    string    `gorm:"column:culprit"`
	FilePath   string    `gorm:"column:file_path"`
	Upvotes    int       `gorm:"column:upvotes"`
	CreatedAt  Timestamp `gorm:"column:created_at;autoCreateTime:false"`
	RecordedAt Timestamp `gorm:"column:recorded_at"`
}

// TableName overrides the table name used by quoteRecord.
func (quoteRecord) TableName() string {
	return "quotes"
}

func (r quoteRecord) toDomain() domain.Quote {
	return domain.Quote{
		Name:       r.Name,
		Content:    r.Content,
		Culprit:    r.Culprit,
		FilePath:   r.FilePath,
		Upvotes:    r.Upvotes,
		CreatedAt:  r.CreatedAt.Time(),
		RecordedAt: r.RecordedAt.Time(),
	}
}

func (r quoteRecord) toSummary() domain.RankedQuote {
	return r.toDomain().Summary()
}

func newQuoteRecord(q domain.Quote) quoteRecord {
	return quoteRecord{
		Name:       q.Name,
		Content:    q.Content,
		Culprit:    q.Culprit,
		FilePath:   q.FilePath,
		Upvotes:    q.Upvotes,
		CreatedAt:  Timestamp(q.CreatedAt),
		RecordedAt: Timestamp(q.RecordedAt),
	}
}

// userUpvoteRecord is the user_upvotes table row.
type userUpvoteRecord struct {
	UserID    string `gorm:"column:user_id;primaryKey"`
	QuoteName string `gorm:"column:quote_name;primaryKey"`
}

// TableName overrides the table name used by userUpvoteRecord.
func (userUpvoteRecord) TableName() string {
	return "user_upvotes"
}
