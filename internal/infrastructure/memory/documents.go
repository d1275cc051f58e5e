package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-docshare/internal/domain"
)

type grantKey struct{ docID, userID string }

// DocumentStore keeps documents and their grants. Grants are keyed by
// (document, user) so a grantee can never appear twice.
type DocumentStore struct {
	mu     sync.RWMutex
	docs   map[string]domain.Document
	grants map[grantKey]domain.ShareGrant
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]domain.Document), grants: make(map[grantKey]domain.ShareGrant)}
}

func (s *DocumentStore) Create(_ context.Context, d *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[d.DocumentID]; ok {
		return fmt.Errorf("document exists: %w", domain.ErrConflict)
	}
	cp := *d
	cp.SharedWith = nil
	s.docs[d.DocumentID] = cp
	return nil
}

func (s *DocumentStore) Get(_ context.Context, docID string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[docID]
	if !ok {
		return nil, fmt.Errorf("document not found: %w", domain.ErrNotFound)
	}
	d.SharedWith = s.grantsLocked(docID)
	return &d, nil
}

func (s *DocumentStore) Update(_ context.Context, docID string, patch domain.DocumentPatch, expectedVersion int64) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[docID]
	if !ok {
		return nil, fmt.Errorf("document not found: %w", domain.ErrNotFound)
	}
	if d.Version != expectedVersion {
		return nil, fmt.Errorf("document was modified concurrently: %w", domain.ErrConflict)
	}
	if patch.Title != nil {
		d.Title = *patch.Title
	}
	if patch.Description != nil {
		d.Description = *patch.Description
	}
	if patch.DocumentType != nil {
		d.DocumentType = *patch.DocumentType
	}
	d.Version++
	d.UpdatedAt = time.Now().UTC()
	s.docs[docID] = d
	d.SharedWith = s.grantsLocked(docID)
	return &d, nil
}

func (s *DocumentStore) Delete(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, docID)
	for k := range s.grants {
		if k.docID == docID {
			delete(s.grants, k)
		}
	}
	return nil
}

func (s *DocumentStore) ListByOwner(_ context.Context, userID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Document{}
	for id, d := range s.docs {
		if d.OwnerID == userID {
			d.SharedWith = s.grantsLocked(id)
			out = append(out, d)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *DocumentStore) ListSharedWith(_ context.Context, userID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Document{}
	for k := range s.grants {
		if k.userID != userID {
			continue
		}
		d, ok := s.docs[k.docID]
		if !ok {
			continue
		}
		d.SharedWith = s.grantsLocked(k.docID)
		out = append(out, d)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *DocumentStore) AppendOrUpdateGrant(_ context.Context, g *domain.ShareGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[g.DocumentID]; !ok {
		return fmt.Errorf("document not found: %w", domain.ErrNotFound)
	}
	k := grantKey{g.DocumentID, g.UserID}
	if prev, ok := s.grants[k]; ok && !prev.SharedAt.IsZero() {
		g.SharedAt = prev.SharedAt
	}
	s.grants[k] = *g
	return nil
}

func (s *DocumentStore) RemoveGrant(_ context.Context, docID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, grantKey{docID, userID})
	return nil
}

func (s *DocumentStore) ListGrants(_ context.Context, docID string) ([]domain.ShareGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grantsLocked(docID), nil
}

// grantsLocked returns docID's grants ordered by share time. Caller holds mu.
func (s *DocumentStore) grantsLocked(docID string) []domain.ShareGrant {
	out := []domain.ShareGrant{}
	for k, g := range s.grants {
		if k.docID == docID {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SharedAt.Equal(out[j].SharedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].SharedAt.Before(out[j].SharedAt)
	})
	return out
}

func sortNewestFirst(docs []domain.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].DocumentID > docs[j].DocumentID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
}
