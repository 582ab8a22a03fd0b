package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"framebooth/core"
)

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store. Each template is one JSON
// file named after its slug.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

func (s *fsStore) templatePath(slug string) (string, error) {
	// Slugs are path segments; anything that escapes the base directory is
	// rejected rather than resolved.
	if slug == "" || slug == "." || slug == ".." || filepath.Base(slug) != slug {
		return "", fmt.Errorf("invalid slug %q", slug)
	}
	return filepath.Join(s.basePath, slug+".json"), nil
}

func (s *fsStore) Get(ctx context.Context, slug string) (*core.FrameTemplate, error) {
	log := logrus.WithField("slug", slug)
	path, err := s.templatePath(slug)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Template with specified slug not found")
			return nil, core.ErrTemplateNotFound
		}
		log.WithError(err).Error("Failed to read template file")
		return nil, err
	}

	var tpl core.FrameTemplate
	if err := json.Unmarshal(data, &tpl); err != nil {
		log.WithError(err).Error("Failed to decode template file")
		return nil, err
	}
	log.Info("Template retrieved successfully")
	return &tpl, nil
}

func (s *fsStore) Save(ctx context.Context, template *core.FrameTemplate) error {
	log := logrus.WithField("slug", template.Slug)
	path, err := s.templatePath(template.Slug)
	if err != nil {
		return err
	}

	now := time.Now()
	if existing, err := s.Get(ctx, template.Slug); err == nil {
		template.CreatedAt = existing.CreatedAt
	} else {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	data, err := json.Marshal(template)
	if err != nil {
		log.WithError(err).Error("Failed to encode template")
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write template file")
		return err
	}
	log.Info("Template saved successfully")
	return nil
}

func (s *fsStore) List(ctx context.Context, page, pageSize int) (*core.TemplatePage, error) {
	files, err := os.ReadDir(s.basePath)
	if err != nil {
		logrus.WithError(err).Error("Failed to read storage directory")
		return nil, err
	}

	all := make([]*core.FrameTemplate, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		slug := strings.TrimSuffix(file.Name(), ".json")
		tpl, err := s.Get(ctx, slug)
		if err != nil {
			logrus.WithError(err).Warnf("Failed to load template %s, skipping", slug)
			continue
		}
		all = append(all, tpl.Meta())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

	return paginate(all, page, pageSize), nil
}

func (s *fsStore) Delete(ctx context.Context, slug string) error {
	path, err := s.templatePath(slug)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return core.ErrTemplateNotFound
		}
		return err
	}
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
