package service

import (
	"context"

	"sitegen/internal/infrastructure/identity"
	"sitegen/internal/model"
)

type WebsiteService struct {
	websites WebsiteStore
}

func NewWebsiteService(websites WebsiteStore) *WebsiteService {
	return &WebsiteService{websites: websites}
}

// Get returns one record. Records belonging to someone else are refused
// unless the caller is an admin.
func (s *WebsiteService) Get(ctx context.Context, caller *identity.Principal, id string) (*model.Website, error) {
	if caller == nil || caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	if id == "" {
		return nil, invalid("website id is required")
	}
	w, err := s.websites.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if w.UserID != caller.ID && !caller.IsAdmin {
		return nil, ErrPermissionDenied
	}
	return w, nil
}

func (s *WebsiteService) List(ctx context.Context, caller *identity.Principal, page, pageSize int) ([]*model.WebsiteSummary, int64, error) {
	if caller == nil || caller.ID == "" {
		return nil, 0, ErrUnauthenticated
	}
	page, pageSize = normalizePage(page, pageSize)
	items, total, err := s.websites.ListByUserID(ctx, caller.ID, page, pageSize)
	if err != nil {
		return nil, 0, storeError(err)
	}
	return items, total, nil
}
