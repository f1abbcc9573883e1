package service

import (
	"context"
	"strings"
	"time"

	"github.com/traveldairy2025nju/td-backend/internal/geo"
	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/repository"
	"github.com/traveldairy2025nju/td-backend/internal/validation"
)

// DiscoveryService finds published entries by keyword or by distance.
type DiscoveryService struct {
	entries repository.EntryRepository
	users   repository.UserRepository
}

func NewDiscoveryService(entries repository.EntryRepository, users repository.UserRepository) *DiscoveryService {
	return &DiscoveryService{entries: entries, users: users}
}

// Search matches the keyword against title, content and author nickname,
// case-insensitively.
func (s *DiscoveryService) Search(ctx context.Context, keyword string, req PageRequest) (*Page[*EntryView], error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, models.NewValidationError("keyword is required")
	}

	req, limit, offset := req.normalize()
	entries, total, err := s.entries.SearchApproved(ctx, keyword, limit, offset)
	if err != nil {
		return nil, err
	}
	views, err := entryViews(ctx, s.users, entries)
	if err != nil {
		return nil, err
	}
	return newPage(views, total, req), nil
}

// FindNearby ranks every published entry by great-circle distance from
// (lat, lng). Entries without coordinates come last with a null distance.
func (s *DiscoveryService) FindNearby(ctx context.Context, lat, lng float64, req PageRequest) (*Page[*NearbyEntryView], error) {
	if err := validation.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	entries, err := s.entries.ListAll(ctx, repository.EntryFilter{Status: models.StatusApproved})
	if err != nil {
		return nil, err
	}

	ranked := geo.RankByDistance(entries, geo.Point{Lat: lat, Lng: lng},
		func(e *models.Entry) (geo.Point, bool) {
			if !e.Location.HasCoordinates() {
				return geo.Point{}, false
			}
			return geo.Point{Lat: *e.Location.Latitude, Lng: *e.Location.Longitude}, true
		},
		func(e *models.Entry) time.Time { return e.CreatedAt },
	)

	req, limit, offset := req.normalize()
	total := int64(len(ranked))
	if offset > len(ranked) {
		offset = len(ranked)
	}
	end := min(offset+limit, len(ranked))
	window := ranked[offset:end]

	pageEntries := make([]*models.Entry, 0, len(window))
	for _, r := range window {
		pageEntries = append(pageEntries, r.Item)
	}
	views, err := entryViews(ctx, s.users, pageEntries)
	if err != nil {
		return nil, err
	}

	items := make([]*NearbyEntryView, 0, len(window))
	for i, r := range window {
		items = append(items, &NearbyEntryView{EntryView: views[i], Distance: r.Distance})
	}
	return newPage(items, total, req), nil
}
