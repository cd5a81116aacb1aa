package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tomlord1122/todo-share/internal/service"
)

func blogListRequest(r *http.Request) (service.ListBlogsRequest, error) {
	page, err := pageQuery(r)
	if err != nil {
		return service.ListBlogsRequest{}, err
	}
	query := r.URL.Query()
	return service.ListBlogsRequest{
		Status:      query.Get("status"),
		Search:      query.Get("search"),
		PageRequest: page,
	}, nil
}

func (s *Server) listMyBlogsHandler(w http.ResponseWriter, r *http.Request) {
	req, err := blogListRequest(r)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	blogs, err := s.blogs.ListMyBlogs(r.Context(), currentUser(r).ID, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithPage(w, blogs.Items, blogs.Pagination)
}

func (s *Server) listPublishedBlogsHandler(w http.ResponseWriter, r *http.Request) {
	req, err := blogListRequest(r)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	req.Status = ""

	blogs, err := s.blogs.ListPublished(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithPage(w, blogs.Items, blogs.Pagination)
}

func (s *Server) getBlogHandler(w http.ResponseWriter, r *http.Request) {
	var viewerID uint
	if user := currentUser(r); user != nil {
		viewerID = user.ID
	}

	blog, err := s.blogs.GetBlog(r.Context(), chi.URLParam(r, "id"), viewerID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "", blog)
}

func (s *Server) createBlogHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBlogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	blog, err := s.blogs.CreateBlog(r.Context(), currentUser(r).ID, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, "Blog created successfully", blog)
}

func (s *Server) updateBlogHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req service.UpdateBlogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	blog, err := s.blogs.UpdateBlog(r.Context(), id, currentUser(r).ID, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Blog updated successfully", blog)
}

func (s *Server) deleteBlogHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := s.blogs.DeleteBlog(r.Context(), id, currentUser(r).ID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Blog deleted successfully", nil)
}

type blogTransition func(ctx context.Context, id, authorID uint) (*service.BlogResponse, error)

func (s *Server) transitionBlog(w http.ResponseWriter, r *http.Request, apply blogTransition, message string) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	blog, err := apply(r.Context(), id, currentUser(r).ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, message, blog)
}

func (s *Server) publishBlogHandler(w http.ResponseWriter, r *http.Request) {
	s.transitionBlog(w, r, s.blogs.PublishBlog, "Blog published successfully")
}

func (s *Server) unpublishBlogHandler(w http.ResponseWriter, r *http.Request) {
	s.transitionBlog(w, r, s.blogs.UnpublishBlog, "Blog unpublished successfully")
}

func (s *Server) archiveBlogHandler(w http.ResponseWriter, r *http.Request) {
	s.transitionBlog(w, r, s.blogs.ArchiveBlog, "Blog archived successfully")
}
