package server

import (
	"net/http"

	"github.com/google/uuid"

	"trenchsocial/domain"
)

const topPostsLimit = 5

type createPostRequest struct {
	Username string `json:"username" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Text     string `json:"text" validate:"required,max=500"`
	ImageURL string `json:"imageURL" validate:"omitempty,url"`
}

type commentRequest struct {
	Username string `json:"username" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Text     string `json:"text" validate:"required,max=500"`
}

type reactionRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (s *Server) handleListPosts(w http.ResponseWriter, _ *http.Request) {
	posts, err := s.posts.List()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var request createPostRequest
	if !s.decodeAndValidate(w, r, &request) {
		return
	}
	post, err := s.posts.Create(domain.Post{
		Author:   request.Username,
		Name:     request.Name,
		Text:     request.Text,
		ImageURL: request.ImageURL,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleMostLiked(w http.ResponseWriter, _ *http.Request) {
	posts, err := s.posts.MostLiked(topPostsLimit)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleMostRetruthed(w http.ResponseWriter, _ *http.Request) {
	posts, err := s.posts.MostRetruthed(topPostsLimit)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handlePostsByAuthor(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.ByAuthor(r.PathValue("username"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.posts.Delete(id); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var request commentRequest
	if !s.decodeAndValidate(w, r, &request) {
		return
	}
	comment, err := s.posts.AddComment(id, domain.Comment{
		Author: request.Username,
		Name:   request.Name,
		Text:   request.Text,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleRemoveComment(w http.ResponseWriter, r *http.Request) {
	postID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	commentID, ok := s.pathUUID(w, r, "commentId")
	if !ok {
		return
	}
	if err := s.posts.RemoveComment(postID, commentID); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCommentLike toggles the caller's membership in one comment's like
// set and returns the updated comment.
func (s *Server) handleCommentLike(w http.ResponseWriter, r *http.Request) {
	postID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	commentID, ok := s.pathUUID(w, r, "commentId")
	if !ok {
		return
	}
	var request reactionRequest
	if !s.decodeAndValidate(w, r, &request) {
		return
	}
	comment, err := s.posts.ToggleCommentLike(postID, commentID, request.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, comment)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.handleReaction(w, r, s.posts.ToggleLike)
}

func (s *Server) handleRetruth(w http.ResponseWriter, r *http.Request) {
	s.handleReaction(w, r, s.posts.ToggleRetruth)
}

func (s *Server) handleReaction(
	w http.ResponseWriter,
	r *http.Request,
	toggle func(uuid.UUID, string) (domain.Post, error),
) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var request reactionRequest
	if !s.decodeAndValidate(w, r, &request) {
		return
	}
	post, err := toggle(id, request.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}

func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid id.")
		return uuid.Nil, false
	}
	return id, true
}
