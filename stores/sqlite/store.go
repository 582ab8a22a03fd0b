package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"framebooth/core"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	stmt := `
	CREATE TABLE IF NOT EXISTS templates (
		slug TEXT PRIMARY KEY,
		name TEXT,
		description TEXT,
		data BLOB,
		created_at DATETIME,
		updated_at DATETIME
	);`
	if _, err = db.Exec(stmt); err != nil {
		log.Fatalf("failed to create templates table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) Get(ctx context.Context, slug string) (*core.FrameTemplate, error) {
	log := logrus.WithField("slug", slug)
	log.Debug("Retrieving template by slug")

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM templates WHERE slug = ?", slug).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Warn("Template with specified slug not found")
			return nil, core.ErrTemplateNotFound
		}
		log.WithError(err).Error("Failed to retrieve template")
		return nil, err
	}

	var tpl core.FrameTemplate
	if err := json.Unmarshal(data, &tpl); err != nil {
		log.WithError(err).Error("Failed to decode stored template")
		return nil, err
	}
	log.Info("Template retrieved successfully")
	return &tpl, nil
}

func (s *sqliteStore) Save(ctx context.Context, template *core.FrameTemplate) error {
	log := logrus.WithField("slug", template.Slug)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var createdAt time.Time
	err = tx.QueryRowContext(ctx, "SELECT created_at FROM templates WHERE slug = ?", template.Slug).Scan(&createdAt)
	now := time.Now()
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	exists := err == nil

	if exists {
		template.CreatedAt = createdAt
	} else {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	data, err := json.Marshal(template)
	if err != nil {
		log.WithError(err).Error("Failed to encode template")
		return err
	}

	if exists {
		_, err = tx.ExecContext(ctx,
			"UPDATE templates SET name = ?, description = ?, data = ?, updated_at = ? WHERE slug = ?",
			template.Name, template.Description, data, template.UpdatedAt, template.Slug)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO templates (slug, name, description, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			template.Slug, template.Name, template.Description, data, template.CreatedAt, template.UpdatedAt)
	}
	if err != nil {
		log.WithError(err).Error("Failed to save template")
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info("Template saved successfully")
	return nil
}

func (s *sqliteStore) List(ctx context.Context, page, pageSize int) (*core.TemplatePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM templates").Scan(&total); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT slug, name, description, created_at, updated_at FROM templates ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]*core.FrameTemplate, 0, pageSize)
	for rows.Next() {
		var tpl core.FrameTemplate
		if err := rows.Scan(&tpl.Slug, &tpl.Name, &tpl.Description, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, &tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &core.TemplatePage{
		Templates:  templates,
		TotalCount: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *sqliteStore) Delete(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE slug = ?", slug)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrTemplateNotFound
	}
	return nil
}
