package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
)

const postsIndex = "posts"

// PostDocument is the shape of a post in the search index. Bodies are
// stripped to plain text before indexing.
type PostDocument struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	AuthorName string    `json:"author_name"`
	Published  bool      `json:"published"`
	CreatedAt  time.Time `json:"created_at"`
}

// SearchService mirrors posts into Meilisearch. Indexing is best-effort: the
// database stays authoritative and index failures are logged, not returned.
type SearchService interface {
	IndexPost(post *model.Post)
	DeletePost(id string)
	Search(ctx context.Context, query string, limit int) ([]PostDocument, error)
}

type searchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

func NewSearchService(client meilisearch.ServiceManager) SearchService {
	s := &searchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndex()
	return s
}

func (s *searchService) initIndex() {
	if s.client == nil {
		return
	}

	filterable := []any{"published"}
	if _, err := s.client.Index(postsIndex).UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("failed to update posts filterable attributes: %v", err)
	}

	sortable := []string{"created_at"}
	if _, err := s.client.Index(postsIndex).UpdateSortableAttributes(&sortable); err != nil {
		log.Printf("failed to update posts sortable attributes: %v", err)
	}
}

func (s *searchService) IndexPost(post *model.Post) {
	if s.client == nil {
		return
	}

	authorName := "Unknown User"
	if post.Author != nil {
		authorName = post.Author.Name
	}

	doc := PostDocument{
		ID:         post.ID.String(),
		Title:      post.Title,
		Body:       html.UnescapeString(s.sanitizer.Sanitize(post.Body)),
		AuthorName: authorName,
		Published:  post.Published,
		CreatedAt:  post.CreatedAt,
	}

	if _, err := s.client.Index(postsIndex).AddDocuments([]PostDocument{doc}, nil); err != nil {
		log.Printf("failed to index post %s: %v", post.ID, err)
	}
}

func (s *searchService) DeletePost(id string) {
	if s.client == nil {
		return
	}
	if _, err := s.client.Index(postsIndex).DeleteDocument(id); err != nil {
		log.Printf("failed to remove post %s from index: %v", id, err)
	}
}

func (s *searchService) Search(ctx context.Context, query string, limit int) ([]PostDocument, error) {
	if s.client == nil {
		return nil, nil
	}

	resp, err := s.client.Index(postsIndex).SearchWithContext(ctx, query, &meilisearch.SearchRequest{
		Filter: "published = true",
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	raw, err := json.Marshal(resp.Hits)
	if err != nil {
		return nil, err
	}
	var docs []PostDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
