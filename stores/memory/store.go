package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"framebooth/core"
)

// memStore keeps templates in process memory, keyed by slug. The default
// backend for development and tests.
type memStore struct {
	mu        sync.RWMutex
	templates map[string]*core.FrameTemplate
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{templates: make(map[string]*core.FrameTemplate)}
}

func (s *memStore) Get(ctx context.Context, slug string) (*core.FrameTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithField("slug", slug)
	tpl, ok := s.templates[slug]
	if !ok {
		log.Warn("Template with specified slug not found")
		return nil, core.ErrTemplateNotFound
	}
	log.Info("Template retrieved successfully")
	cp := *tpl
	return &cp, nil
}

func (s *memStore) Save(ctx context.Context, template *core.FrameTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.templates[template.Slug]; ok {
		template.CreatedAt = existing.CreatedAt
	} else {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	cp := *template
	s.templates[template.Slug] = &cp
	logrus.WithField("slug", template.Slug).Info("Template saved successfully")
	return nil
}

func (s *memStore) List(ctx context.Context, page, pageSize int) (*core.TemplatePage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*core.FrameTemplate, 0, len(s.templates))
	for _, tpl := range s.templates {
		all = append(all, tpl.Meta())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

	return paginate(all, page, pageSize), nil
}

func (s *memStore) Delete(ctx context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[slug]; !ok {
		logrus.WithField("slug", slug).Warn("Template not found for deletion")
		return core.ErrTemplateNotFound
	}
	delete(s.templates, slug)
	logrus.WithField("slug", slug).Info("Template deleted successfully")
	return nil
}

func paginate(all []*core.FrameTemplate, page, pageSize int) *core.TemplatePage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	total := len(all)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return &core.TemplatePage{
		Templates:  all[start:end],
		TotalCount: total,
		TotalPages: totalPages,
	}
}
