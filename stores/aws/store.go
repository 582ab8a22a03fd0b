package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"framebooth/core"
)

const keyPrefix = "templates/"

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store. Each template is one JSON object
// under the templates/ prefix, keyed by slug.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

func (s *s3Store) templateKey(slug string) (string, error) {
	// Slugs double as object key segments; reject anything path-like.
	if slug == "" || slug == "." || slug == ".." || path.Base(slug) != slug {
		return "", fmt.Errorf("invalid slug %q", slug)
	}
	return keyPrefix + slug + ".json", nil
}

func (s *s3Store) Get(ctx context.Context, slug string) (*core.FrameTemplate, error) {
	key, err := s.templateKey(slug)
	if err != nil {
		return nil, err
	}
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, core.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template %s: %v", slug, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read template data: %v", err)
	}

	var tpl core.FrameTemplate
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template data: %v", err)
	}
	return &tpl, nil
}

func (s *s3Store) Save(ctx context.Context, template *core.FrameTemplate) error {
	key, err := s.templateKey(template.Slug)
	if err != nil {
		return err
	}

	// Preserve CreatedAt on update.
	existing, err := s.Get(ctx, template.Slug)
	if err == nil && existing != nil {
		template.CreatedAt = existing.CreatedAt
	} else {
		template.CreatedAt = time.Now()
	}
	template.UpdatedAt = time.Now()

	data, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %v", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to save template %s: %v", template.Slug, err)
	}
	return nil
}

func (s *s3Store) List(ctx context.Context, page, pageSize int) (*core.TemplatePage, error) {
	output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %v", err)
	}

	all := make([]*core.FrameTemplate, 0, len(output.Contents))
	for _, object := range output.Contents {
		resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    object.Key,
		})
		if err != nil {
			log.Printf("warn: failed to get object %s: %v", *object.Key, err)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			log.Printf("warn: failed to read object body %s: %v", *object.Key, err)
			continue
		}

		var tpl core.FrameTemplate
		if err := json.Unmarshal(data, &tpl); err != nil {
			log.Printf("warn: failed to unmarshal template %s: %v", *object.Key, err)
			continue
		}
		all = append(all, tpl.Meta())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	total := len(all)
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
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *s3Store) Delete(ctx context.Context, slug string) error {
	key, err := s.templateKey(slug)
	if err != nil {
		return err
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete template %s: %v", slug, err)
	}
	return nil
}
