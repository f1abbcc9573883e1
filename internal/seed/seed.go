package seed

import (
	"context"
	"fmt"
	"log"

	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/repository"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers     int
	NumReviewers int
	NumEntries   int
	MaxDays      int
	BatchSize    int
	RandSeed     int64
	Distribution StatusDistribution
	ShouldClean  bool
	DryRun       bool
}

// StatusDistribution is the percentage of entries seeded as pending and
// rejected. The rest are approved.
type StatusDistribution struct {
	Pending  int
	Rejected int
}

var defaultDistribution = StatusDistribution{Pending: 25, Rejected: 15}

// Summary reports what Seed created.
type Summary struct {
	Users     int
	Approved  int
	Pending   int
	Rejected  int
	Likes     int
	Favorites int
	Comments  int
}

// computeCounts splits total entries into approved, pending and rejected.
func computeCounts(total int, d StatusDistribution) (approved, pending, rejected int) {
	pending = total * d.Pending / 100
	rejected = total * d.Rejected / 100
	approved = total - pending - rejected
	return approved, pending, rejected
}

// Seed populates the database with users, entries in every moderation
// state, and engagement on the published ones.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	if opts.Distribution == (StatusDistribution{}) {
		opts.Distribution = defaultDistribution
	}
	if opts.NumReviewers <= 0 {
		opts.NumReviewers = 1
	}
	log.Printf("🌱 Seeding %d users and %d entries...", opts.NumUsers, opts.NumEntries)

	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	f := NewFactory(db, opts)
	summary := &Summary{}

	admin, err := f.CreateUser(func(u *models.User) {
		u.Username = fmt.Sprintf("admin%d", f.faker.Number(1000, 9999))
		u.Nickname = "Admin"
		u.Role = models.RoleAdmin
	})
	if err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	reviewers := []*models.User{admin}
	for i := 0; i < opts.NumReviewers; i++ {
		r, err := f.CreateUser(func(u *models.User) { u.Role = models.RoleReviewer })
		if err != nil {
			return nil, fmt.Errorf("create reviewer: %w", err)
		}
		reviewers = append(reviewers, r)
	}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		users = append(users, u)
	}
	summary.Users = len(users) + len(reviewers)
	log.Printf("✓ %d users created (%d staff)", summary.Users, len(reviewers))
	if len(users) == 0 {
		return summary, nil
	}

	approvedN, pendingN, rejectedN := computeCounts(opts.NumEntries, opts.Distribution)
	entries := make([]*models.Entry, 0, opts.NumEntries)
	approved := make([]*models.Entry, 0, approvedN)
	for _, batch := range []struct {
		status models.EntryStatus
		n      int
	}{
		{models.StatusApproved, approvedN},
		{models.StatusPending, pendingN},
		{models.StatusRejected, rejectedN},
	} {
		for i := 0; i < batch.n; i++ {
			author := users[f.faker.Number(0, len(users)-1)]
			reviewer := reviewers[f.faker.Number(0, len(reviewers)-1)]
			e := f.BuildEntry(author, batch.status, reviewer)
			entries = append(entries, e)
			if batch.status == models.StatusApproved {
				approved = append(approved, e)
			}
		}
	}
	if err := f.CreateEntriesBatch(entries); err != nil {
		return nil, fmt.Errorf("create entries: %w", err)
	}
	summary.Approved, summary.Pending, summary.Rejected = approvedN, pendingN, rejectedN
	log.Printf("✓ %d entries created (%d approved, %d pending, %d rejected)",
		len(entries), approvedN, pendingN, rejectedN)

	if opts.DryRun {
		return summary, nil
	}

	if err := seedEngagement(f, users, approved, summary); err != nil {
		return nil, err
	}

	touched, err := repository.NewMaintenanceRepository(db).ReconcileCounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile counters: %w", err)
	}
	log.Printf("✓ engagement seeded: %d likes, %d favorites, %d comments (%d entries reconciled)",
		summary.Likes, summary.Favorites, summary.Comments, touched)

	log.Println("🎉 Database seeding completed successfully!")
	return summary, nil
}

// seedEngagement adds likes, favorites and a shallow comment thread to each
// published entry.
func seedEngagement(f *Factory, users []*models.User, entries []*models.Entry, summary *Summary) error {
	for _, e := range entries {
		for _, u := range f.pick(users, f.faker.Number(0, 8)) {
			if err := f.CreateLike(u, e); err != nil {
				return fmt.Errorf("create like: %w", err)
			}
			summary.Likes++
		}
		for _, u := range f.pick(users, f.faker.Number(0, 3)) {
			if err := f.CreateFavorite(u, e); err != nil {
				return fmt.Errorf("create favorite: %w", err)
			}
			summary.Favorites++
		}

		var roots []*models.Comment
		for i := f.faker.Number(0, 4); i > 0; i-- {
			author := users[f.faker.Number(0, len(users)-1)]
			var parent *models.Comment
			if len(roots) > 0 && f.faker.Number(1, 10) <= 3 {
				parent = roots[f.faker.Number(0, len(roots)-1)]
			}
			c, err := f.CreateComment(author, e, parent)
			if err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
			summary.Comments++
			if parent == nil {
				roots = append(roots, c)
			}
			for _, u := range f.pick(users, f.faker.Number(0, 2)) {
				if err := f.CreateCommentLike(u, c); err != nil {
					return fmt.Errorf("create comment like: %w", err)
				}
			}
		}
	}
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE comment_likes, comments, likes, favorites, entries, users RESTART IDENTITY CASCADE`).Error
	}
	for _, table := range []string{"comment_likes", "comments", "likes", "favorites", "entries", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}
