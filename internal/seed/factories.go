// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/traveldairy2025nju/td-backend/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Place is a well-known destination entries can be pinned to.
type Place struct {
	City    string
	Name    string
	Address string
	Lat     float64
	Lng     float64
}

// Places seeded entries are scattered around.
var Places = []Place{
	{"Nanjing", "Confucius Temple", "Gongyuan St, Qinhuai District", 32.0206, 118.7886},
	{"Shanghai", "The Bund", "Zhongshan East 1st Rd, Huangpu District", 31.2400, 121.4900},
	{"Beijing", "Forbidden City", "4 Jingshan Front St, Dongcheng District", 39.9163, 116.3972},
	{"Hangzhou", "West Lake", "Longjing Rd, Xihu District", 30.2460, 120.1500},
	{"Xi'an", "City Wall", "South Gate, Beilin District", 34.2590, 108.9470},
	{"Chengdu", "Kuanzhai Alley", "Changshun Upper St, Qingyang District", 30.6640, 104.0560},
	{"Guilin", "Li River", "Binjiang Rd, Xiufeng District", 25.2740, 110.2900},
	{"Lijiang", "Old Town of Lijiang", "Xinyi St, Gucheng District", 26.8720, 100.2300},
	{"Suzhou", "Humble Administrator's Garden", "178 Dongbei St, Gusu District", 31.3250, 120.6290},
	{"Xiamen", "Gulangyu", "Gulangyu Island, Siming District", 24.4470, 118.0640},
}

var rejectReasons = []string{
	"Photos do not match the described destination",
	"Contains advertising or contact details",
	"Images are too blurry to publish",
	"Content copied from another site",
	"Inappropriate language in the description",
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by Seed and tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB. A zero
// opts.RandSeed seeds from the clock.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, opts: opts, faker: gofakeit.New(seed), nextID: 1000}
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: strings.ToLower(f.faker.Username()) + fmt.Sprintf("%d", f.faker.Number(100, 999)),
		Nickname: f.faker.FirstName(),
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		Role:     models.RoleUser,
	}
	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildEntry constructs an entry in the given state without persisting it.
// Reviewed entries are attributed to reviewer when one is given.
func (f *Factory) BuildEntry(author *models.User, status models.EntryStatus, reviewer *models.User, overrides ...func(*models.Entry)) *models.Entry {
	place := Places[f.faker.Number(0, len(Places)-1)]

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	created := time.Now().Add(-time.Duration(f.faker.Number(0, maxDays*24*60-1)) * time.Minute)

	entry := &models.Entry{
		Title:     fmt.Sprintf("%s %s in %s", capitalize(f.faker.Adjective()), strings.ToLower(f.faker.Noun()), place.City),
		Content:   f.faker.Paragraph(f.faker.Number(1, 3), f.faker.Number(3, 6), 12, "\n\n"),
		AuthorID:  author.ID,
		Status:    status,
		CreatedAt: created,
		UpdatedAt: created,
	}

	images := f.faker.Number(1, 4)
	for i := 0; i < images; i++ {
		entry.Images = append(entry.Images, fmt.Sprintf("https://picsum.photos/seed/%s/1080/720", f.faker.UUID()))
	}
	if f.faker.Number(1, 10) == 1 {
		video := fmt.Sprintf("https://cdn.example.com/videos/%s.mp4", f.faker.UUID())
		entry.Video = &video
	}
	if f.faker.Number(1, 4) > 1 {
		lat := place.Lat + f.faker.Float64Range(-0.02, 0.02)
		lng := place.Lng + f.faker.Float64Range(-0.02, 0.02)
		entry.Location = models.Location{Name: place.Name, Address: place.Address, Latitude: &lat, Longitude: &lng}
	}

	if status != models.StatusPending {
		reviewedAt := created.Add(time.Duration(f.faker.Number(10, 48*60)) * time.Minute)
		if reviewedAt.After(time.Now()) {
			reviewedAt = time.Now()
		}
		entry.ReviewedAt = &reviewedAt
		if reviewer != nil {
			entry.ReviewedBy = &reviewer.ID
		}
		switch status {
		case models.StatusApproved:
			entry.ApprovedAt = &reviewedAt
		case models.StatusRejected:
			reason := rejectReasons[f.faker.Number(0, len(rejectReasons)-1)]
			entry.RejectReason = &reason
		}
	}

	for _, override := range overrides {
		override(entry)
	}
	return entry
}

// CreateEntriesBatch persists multiple entries in chunks.
func (f *Factory) CreateEntriesBatch(entries []*models.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, e := range entries {
			f.nextID++
			e.ID = f.nextID
		}
		log.Printf("[dry-run] CreateEntriesBatch: %d entries (no DB write)", len(entries))
		return nil
	}
	batch := f.opts.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return f.db.CreateInBatches(entries, batch).Error
}

// CreateComment persists a comment by user on entry. A non-nil parent makes
// it a reply.
func (f *Factory) CreateComment(user *models.User, entry *models.Entry, parent *models.Comment) (*models.Comment, error) {
	comment := &models.Comment{
		EntryID: entry.ID,
		UserID:  user.ID,
		Content: f.faker.Sentence(f.faker.Number(4, 16)),
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from user on entry.
func (f *Factory) CreateLike(user *models.User, entry *models.Entry) error {
	return f.db.Create(&models.Like{EntryID: entry.ID, UserID: user.ID}).Error
}

// CreateFavorite persists a favorite from user on entry.
func (f *Factory) CreateFavorite(user *models.User, entry *models.Entry) error {
	return f.db.Create(&models.Favorite{EntryID: entry.ID, UserID: user.ID}).Error
}

// CreateCommentLike persists a like from user on comment.
func (f *Factory) CreateCommentLike(user *models.User, comment *models.Comment) error {
	return f.db.Create(&models.CommentLike{CommentID: comment.ID, UserID: user.ID}).Error
}

// pick returns up to n distinct users in random order.
func (f *Factory) pick(users []*models.User, n int) []*models.User {
	n = min(n, len(users))
	out := make([]*models.User, 0, n)
	for _, i := range f.faker.Rand.Perm(len(users))[:n] {
		out = append(out, users[i])
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
