package service

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-share/internal/domain"
	"github.com/Tomlord1122/todo-share/internal/repository"
)

const excerptLength = 200

type CreateBlogRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Slug        string  `json:"slug" validate:"max=255"`
	Excerpt     string  `json:"excerpt" validate:"max=500"`
	Content     string  `json:"content" validate:"required"`
	Status      string  `json:"status" validate:"omitempty,oneof=draft published archived"`
	PublishedAt *string `json:"published_at"`
}

type UpdateBlogRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Slug        *string `json:"slug" validate:"omitempty,max=255"`
	Excerpt     *string `json:"excerpt" validate:"omitempty,max=500"`
	Content     *string `json:"content"`
	Status      *string `json:"status" validate:"omitempty,oneof=draft published archived"`
	PublishedAt *string `json:"published_at"`
}

type ListBlogsRequest struct {
	Status string
	Search string
	PageRequest
}

type BlogService interface {
	CreateBlog(ctx context.Context, authorID uint, req CreateBlogRequest) (*BlogResponse, error)
	UpdateBlog(ctx context.Context, id, authorID uint, req UpdateBlogRequest) (*BlogResponse, error)
	DeleteBlog(ctx context.Context, id, authorID uint) error
	PublishBlog(ctx context.Context, id, authorID uint) (*BlogResponse, error)
	UnpublishBlog(ctx context.Context, id, authorID uint) (*BlogResponse, error)
	ArchiveBlog(ctx context.Context, id, authorID uint) (*BlogResponse, error)
	ListMyBlogs(ctx context.Context, authorID uint, req ListBlogsRequest) (*BlogPage, error)
	ListPublished(ctx context.Context, req ListBlogsRequest) (*BlogPage, error)
	// GetBlog looks the post up by numeric id or by slug. Unpublished posts
	// are visible to their author only; viewerID 0 is an anonymous reader.
	// Reading a published post by slug counts a view.
	GetBlog(ctx context.Context, idOrSlug string, viewerID uint) (*BlogResponse, error)
}

type blogService struct {
	repo     repository.BlogRepository
	content  *bluemonday.Policy
	stripAll *bluemonday.Policy
	log      zerolog.Logger
	now      func() time.Time
}

func NewBlogService(repo repository.BlogRepository, log zerolog.Logger) BlogService {
	return &blogService{
		repo:     repo,
		content:  bluemonday.UGCPolicy(),
		stripAll: bluemonday.StrictPolicy(),
		log:      log.With().Str("component", "blog_service").Logger(),
		now:      time.Now,
	}
}

func (s *blogService) CreateBlog(ctx context.Context, authorID uint, req CreateBlogRequest) (*BlogResponse, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	blog := &domain.Blog{
		AuthorID: authorID,
		Title:    req.Title,
		Content:  s.content.Sanitize(req.Content),
		Excerpt:  strings.TrimSpace(req.Excerpt),
		Status:   domain.BlogDraft,
	}
	if req.Status != "" {
		blog.Status = domain.BlogStatus(req.Status)
	}
	if req.PublishedAt != nil && *req.PublishedAt != "" {
		at, err := parsePublishedAt(*req.PublishedAt)
		if err != nil {
			return nil, err
		}
		blog.PublishedAt = &at
	}
	if blog.Status == domain.BlogPublished && blog.PublishedAt == nil {
		now := s.now()
		blog.PublishedAt = &now
	}
	if blog.Excerpt == "" {
		blog.Excerpt = s.excerpt(blog.Content)
	}

	source := req.Slug
	if strings.TrimSpace(source) == "" {
		source = req.Title
	}
	var err error
	if blog.Slug, err = s.uniqueSlug(ctx, source, 0); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, blog); err != nil {
		return nil, err
	}
	s.log.Info().Uint("blog_id", blog.ID).Str("slug", blog.Slug).Msg("blog created")

	resp := newBlogResponse(blog)
	return &resp, nil
}

func (s *blogService) UpdateBlog(ctx context.Context, id, authorID uint, req UpdateBlogRequest) (*BlogResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	blog, err := s.repo.FindByIDAndAuthor(ctx, id, authorID)
	if err != nil {
		return nil, err
	}

	titleChanged := false
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fieldError("title", "the title field is required")
		}
		titleChanged = title != blog.Title
		blog.Title = title
	}
	if req.Content != nil {
		blog.Content = s.content.Sanitize(*req.Content)
	}
	if req.Excerpt != nil {
		blog.Excerpt = strings.TrimSpace(*req.Excerpt)
	}
	if req.Content != nil && (req.Excerpt == nil || strings.TrimSpace(*req.Excerpt) == "") {
		blog.Excerpt = s.excerpt(blog.Content)
	}

	switch {
	case req.Slug != nil && strings.TrimSpace(*req.Slug) != "":
		if blog.Slug, err = s.uniqueSlug(ctx, *req.Slug, blog.ID); err != nil {
			return nil, err
		}
	case titleChanged:
		if blog.Slug, err = s.uniqueSlug(ctx, blog.Title, blog.ID); err != nil {
			return nil, err
		}
	}

	if req.PublishedAt != nil && *req.PublishedAt != "" {
		at, err := parsePublishedAt(*req.PublishedAt)
		if err != nil {
			return nil, err
		}
		blog.PublishedAt = &at
	}
	if req.Status != nil {
		status := domain.BlogStatus(*req.Status)
		if status == domain.BlogPublished && blog.Status != domain.BlogPublished && req.PublishedAt == nil {
			now := s.now()
			blog.PublishedAt = &now
		}
		blog.Status = status
	}

	if err := s.repo.Update(ctx, blog); err != nil {
		return nil, err
	}
	resp := newBlogResponse(blog)
	return &resp, nil
}

func (s *blogService) DeleteBlog(ctx context.Context, id, authorID uint) error {
	blog, err := s.repo.FindByIDAndAuthor(ctx, id, authorID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, blog.ID); err != nil {
		return err
	}
	s.log.Info().Uint("blog_id", blog.ID).Msg("blog deleted")
	return nil
}

func (s *blogService) PublishBlog(ctx context.Context, id, authorID uint) (*BlogResponse, error) {
	return s.transition(ctx, id, authorID, func(b *domain.Blog) {
		now := s.now()
		b.Status = domain.BlogPublished
		b.PublishedAt = &now
	})
}

func (s *blogService) UnpublishBlog(ctx context.Context, id, authorID uint) (*BlogResponse, error) {
	return s.transition(ctx, id, authorID, func(b *domain.Blog) { b.Status = domain.BlogDraft })
}

func (s *blogService) ArchiveBlog(ctx context.Context, id, authorID uint) (*BlogResponse, error) {
	return s.transition(ctx, id, authorID, func(b *domain.Blog) { b.Status = domain.BlogArchived })
}

func (s *blogService) transition(ctx context.Context, id, authorID uint, apply func(*domain.Blog)) (*BlogResponse, error) {
	blog, err := s.repo.FindByIDAndAuthor(ctx, id, authorID)
	if err != nil {
		return nil, err
	}
	apply(blog)
	if err := s.repo.Update(ctx, blog); err != nil {
		return nil, err
	}
	s.log.Info().Uint("blog_id", blog.ID).Str("status", string(blog.Status)).Msg("blog status changed")
	resp := newBlogResponse(blog)
	return &resp, nil
}

func (s *blogService) ListMyBlogs(ctx context.Context, authorID uint, req ListBlogsRequest) (*BlogPage, error) {
	filter := repository.BlogFilter{AuthorID: &authorID, Search: strings.TrimSpace(req.Search)}
	if req.Status != "" {
		status := domain.BlogStatus(req.Status)
		if !status.Valid() {
			return nil, fieldError("status", "the status must be one of: draft, published, archived")
		}
		filter.Status = &status
	}
	return s.list(ctx, filter, req.PageRequest)
}

func (s *blogService) ListPublished(ctx context.Context, req ListBlogsRequest) (*BlogPage, error) {
	now := s.now()
	return s.list(ctx, repository.BlogFilter{PublishedBefore: &now, Search: strings.TrimSpace(req.Search)}, req.PageRequest)
}

func (s *blogService) list(ctx context.Context, filter repository.BlogFilter, page PageRequest) (*BlogPage, error) {
	page = page.normalize()
	filter.Limit = page.PerPage
	filter.Offset = page.offset()

	blogs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]BlogResponse, 0, len(blogs))
	for i := range blogs {
		items = append(items, newBlogResponse(&blogs[i]))
	}
	return &BlogPage{Items: items, Pagination: newPagination(page, total)}, nil
}

func (s *blogService) GetBlog(ctx context.Context, idOrSlug string, viewerID uint) (*BlogResponse, error) {
	var (
		blog   *domain.Blog
		err    error
		bySlug bool
	)
	if id, convErr := strconv.ParseUint(idOrSlug, 10, 64); convErr == nil {
		blog, err = s.repo.FindByID(ctx, uint(id))
	} else {
		bySlug = true
		blog, err = s.repo.FindBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, err
	}

	published := blog.IsPublished(s.now())
	if !published && (viewerID == 0 || blog.AuthorID != viewerID) {
		return nil, domain.ErrBlogNotFound
	}
	if published && bySlug {
		if err := s.repo.IncrementViews(ctx, blog.ID); err != nil {
			s.log.Warn().Err(err).Uint("blog_id", blog.ID).Msg("failed to count view")
		} else {
			blog.ViewsCount++
		}
	}

	resp := newBlogResponse(blog)
	return &resp, nil
}

// uniqueSlug slugifies source and appends -1, -2, ... until it is free.
func (s *blogService) uniqueSlug(ctx context.Context, source string, exceptID uint) (string, error) {
	base := slug.Make(source)
	switch {
	case base == "":
		base = "post"
	case isNumeric(base):
		// GetBlog reads digit-only keys as ids.
		base = "post-" + base
	}
	candidate := base
	for n := 1; ; n++ {
		taken, err := s.repo.SlugExists(ctx, candidate, exceptID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func isNumeric(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

func (s *blogService) excerpt(content string) string {
	text := strings.TrimSpace(html.UnescapeString(s.stripAll.Sanitize(content)))
	if utf8.RuneCountInString(text) <= excerptLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:excerptLength]), " ") + "..."
}

func parsePublishedAt(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fieldError("published_at", fmt.Sprintf("the published at %q is not a valid date", value))
}
