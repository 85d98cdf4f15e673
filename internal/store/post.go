package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/janburzinski/notra/core/db/sqlc"
	"github.com/janburzinski/notra/internal/model"
)

type postStore struct {
	queries *sqlc.Queries
}

func newPostStore(queries *sqlc.Queries) PostStore {
	return &postStore{queries: queries}
}

func (s *postStore) Create(ctx context.Context, post *model.Post) error {
	var metadata []byte
	if post.SourceMetadata != nil {
		var err error
		if metadata, err = json.Marshal(post.SourceMetadata); err != nil {
			return fmt.Errorf("marshal source metadata: %w", err)
		}
	}

	status := post.Status
	if status == "" {
		status = model.PostStatusDraft
	}

	row, err := s.queries.CreatePost(ctx, sqlc.CreatePostParams{
		ID:             post.ID,
		OrganizationID: post.OrganizationID,
		Title:          post.Title,
		Markdown:       post.Markdown,
		Content:        post.Content,
		ContentType:    string(post.ContentType),
		SourceMetadata: metadata,
		Status:         string(status),
	})
	if err != nil {
		return err
	}
	*post = *toPostModel(row)
	return nil
}

func (s *postStore) GetForOrganization(ctx context.Context, id, organizationID string) (*model.Post, error) {
	row, err := s.queries.GetPostForOrganization(ctx, sqlc.GetPostForOrganizationParams{
		ID:             id,
		OrganizationID: organizationID,
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toPostModel(row), nil
}

func (s *postStore) UpdateContent(ctx context.Context, post *model.Post) error {
	row, err := s.queries.UpdatePostContent(ctx, sqlc.UpdatePostContentParams{
		ID:             post.ID,
		OrganizationID: post.OrganizationID,
		Title:          post.Title,
		Markdown:       post.Markdown,
		Content:        post.Content,
	})
	if err != nil {
		return mapNotFound(err)
	}
	*post = *toPostModel(row)
	return nil
}

func toPostModel(row sqlc.Post) *model.Post {
	post := &model.Post{
		ID:             row.ID,
		OrganizationID: row.OrganizationID,
		Title:          row.Title,
		Markdown:       row.Markdown,
		Content:        row.Content,
		ContentType:    model.OutputType(row.ContentType),
		Status:         model.PostStatus(row.Status),
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
	if len(row.SourceMetadata) > 0 {
		var metadata model.SourceMetadata
		if err := json.Unmarshal(row.SourceMetadata, &metadata); err == nil {
			post.SourceMetadata = &metadata
		}
	}
	return post
}
