package mergequeue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/simplesurance/automerge/internal/githubclt"
)

// queueEntry is the database model of an Entry.
type queueEntry struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	Owner       string    `gorm:"not null;uniqueIndex:idx_merge_queue_pull,priority:1"`
	Repository  string    `gorm:"not null;uniqueIndex:idx_merge_queue_pull,priority:2"`
	Branch      string    `gorm:"not null;uniqueIndex:idx_merge_queue_pull,priority:3"`
	PullNumber  int       `gorm:"not null;uniqueIndex:idx_merge_queue_pull,priority:4"`
	SyncMethod  string    `gorm:"not null"`
	EnqueuedAt  time.Time `gorm:"not null;index"`
	ActiveSince *time.Time
}

func (queueEntry) TableName() string {
	return "merge_queue_entries"
}

func (e *queueEntry) toEntry() *Entry {
	result := Entry{
		Branch: BranchID{
			RepositoryOwner: e.Owner,
			Repository:      e.Repository,
			Branch:          e.Branch,
		},
		PullNumber: e.PullNumber,
		SyncMethod: githubclt.UpdateMethod(e.SyncMethod),
		EnqueuedAt: e.EnqueuedAt,
	}

	if e.ActiveSince != nil {
		t := *e.ActiveSince
		result.ActiveSince = &t
	}

	return &result
}

// the partial index guarantees that only 1 entry per branch can be active
const createActiveIndexStmt = `CREATE UNIQUE INDEX IF NOT EXISTS idx_merge_queue_active
ON merge_queue_entries (owner, repository, branch)
WHERE active_since IS NOT NULL`

const claimStmt = `UPDATE merge_queue_entries SET active_since = ?
WHERE id = (
	SELECT id FROM merge_queue_entries
	WHERE owner = ? AND repository = ? AND branch = ?
	ORDER BY enqueued_at, id
	LIMIT 1
)
AND active_since IS NULL
AND NOT EXISTS (
	SELECT 1 FROM merge_queue_entries
	WHERE owner = ? AND repository = ? AND branch = ? AND active_since IS NOT NULL
)`

// SQLStore is a Store persisting the queues in a SQL database via gorm.
// PostgreSQL and SQLite are supported.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

// OpenDatabase opens a database connection for the SQLStore.
// dialect must be "postgres" or "sqlite".
func OpenDatabase(dialect, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch dialect {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database dialect: %q", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}

		// every connection to an in-memory sqlite database would open
		// a separate database
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// NewSQLStore returns a SQLStore and creates or migrates the database
// schema.
func NewSQLStore(ctx context.Context, db *gorm.DB) (*SQLStore, error) {
	s := SQLStore{
		db:  db,
		now: time.Now,
	}

	if err := s.migrate(ctx); err != nil {
		return nil, err
	}

	return &s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if err := db.AutoMigrate(&queueEntry{}); err != nil {
		return fmt.Errorf("migrating database schema failed: %w", err)
	}

	if err := db.Exec(createActiveIndexStmt).Error; err != nil {
		return fmt.Errorf("creating index failed: %w", err)
	}

	return nil
}

func (s *SQLStore) timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func branchCond(db *gorm.DB, branch *BranchID) *gorm.DB {
	return db.Where(
		"owner = ? AND repository = ? AND branch = ?",
		branch.RepositoryOwner, branch.Repository, branch.Branch,
	)
}

func pullCond(db *gorm.DB, branch *BranchID, pullNumber int) *gorm.DB {
	return branchCond(db, branch).Where("pull_number = ?", pullNumber)
}

func (s *SQLStore) Enqueue(ctx context.Context, e *Entry) (bool, error) {
	var added bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := pullCond(tx.Model(&queueEntry{}), &e.Branch, e.PullNumber).
			Update("sync_method", string(e.SyncMethod))
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected > 0 {
			return nil
		}

		row := queueEntry{
			Owner:      e.Branch.RepositoryOwner,
			Repository: e.Branch.Repository,
			Branch:     e.Branch.Branch,
			PullNumber: e.PullNumber,
			SyncMethod: string(e.SyncMethod),
			EnqueuedAt: s.timestamp(e.EnqueuedAt),
		}

		res = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "owner"},
				{Name: "repository"},
				{Name: "branch"},
				{Name: "pull_number"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"sync_method"}),
		}).Create(&row)
		if res.Error != nil {
			return res.Error
		}

		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("sql: enqueuing failed: %w", err)
	}

	return added, nil
}

func (s *SQLStore) Dequeue(ctx context.Context, branch *BranchID, pullNumber int) (bool, error) {
	res := pullCond(s.db.WithContext(ctx), branch, pullNumber).Delete(&queueEntry{})
	if res.Error != nil {
		return false, fmt.Errorf("sql: dequeuing failed: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}

func (s *SQLStore) Entries(ctx context.Context, branch *BranchID) ([]*Entry, error) {
	var rows []*queueEntry

	err := branchCond(s.db.WithContext(ctx), branch).
		Order("enqueued_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sql: querying entries failed: %w", err)
	}

	result := make([]*Entry, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toEntry())
	}

	return result, nil
}

func (s *SQLStore) Branches(ctx context.Context) ([]*BranchID, error) {
	var rows []struct {
		Owner      string
		Repository string
		Branch     string
	}

	err := s.db.WithContext(ctx).
		Model(&queueEntry{}).
		Distinct("owner", "repository", "branch").
		Order("owner, repository, branch").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sql: querying branches failed: %w", err)
	}

	result := make([]*BranchID, 0, len(rows))
	for _, r := range rows {
		result = append(result, &BranchID{
			RepositoryOwner: r.Owner,
			Repository:      r.Repository,
			Branch:          r.Branch,
		})
	}

	return result, nil
}

func (s *SQLStore) Claim(ctx context.Context, branch *BranchID, ttl time.Duration) (*Entry, error) {
	now := s.timestamp(s.now())
	var claimed *queueEntry

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := branchCond(tx.Model(&queueEntry{}), branch).
			Where("active_since IS NOT NULL AND active_since <= ?", now.Add(-ttl)).
			Update("active_since", nil).Error
		if err != nil {
			return fmt.Errorf("expiring stale claims failed: %w", err)
		}

		res := tx.Exec(claimStmt,
			now,
			branch.RepositoryOwner, branch.Repository, branch.Branch,
			branch.RepositoryOwner, branch.Repository, branch.Branch,
		)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return nil
		}

		var row queueEntry
		err = branchCond(tx, branch).
			Where("active_since IS NOT NULL").
			Take(&row).Error
		if err != nil {
			return fmt.Errorf("querying claimed entry failed: %w", err)
		}

		claimed = &row
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// a concurrent transaction claimed an entry of the branch
			return nil, nil
		}

		return nil, fmt.Errorf("sql: claiming failed: %w", err)
	}

	if claimed == nil {
		return nil, nil
	}

	return claimed.toEntry(), nil
}

func (s *SQLStore) Release(ctx context.Context, branch *BranchID, pullNumber int) error {
	err := pullCond(s.db.WithContext(ctx).Model(&queueEntry{}), branch, pullNumber).
		Update("active_since", nil).Error
	if err != nil {
		return fmt.Errorf("sql: releasing claim failed: %w", err)
	}

	return nil
}
