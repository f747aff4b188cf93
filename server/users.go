package server

import (
	"errors"
	"net/http"
	"sort"

	"github.com/samber/lo"

	"trenchsocial/domain"
	apperrors "trenchsocial/errors"
)

type createUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,alphanum,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	ImageURL string `json:"imageURL" validate:"omitempty,url"`
}

// handleListUsers returns public profiles only. Email addresses never leave
// the store through this endpoint.
func (s *Server) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	users, err := s.users.List()
	if err != nil {
		s.fail(w, err)
		return
	}
	profiles := lo.Map(users, func(user domain.User, _ int) domain.Profile {
		return user.Profile()
	})
	s.writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var request createUserRequest
	if !s.decodeAndValidate(w, r, &request) {
		return
	}
	user, err := s.users.Create(domain.User{
		Name:     request.Name,
		Username: request.Username,
		Email:    request.Email,
		ImageURL: request.ImageURL,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, user.Profile())
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByUsername(r.PathValue("username"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user.Profile())
}

// handleVerifyUser grants the verified badge. From this point on, chat
// messages the user publishes carry the verified snapshot.
func (s *Server) handleVerifyUser(w http.ResponseWriter, r *http.Request) {
	if _, err := s.users.Verify(r.PathValue("username")); err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "User verified successfully."})
}

// topPosterView is a leaderboard row: public profile plus the verified badge
// and the score that ranked it.
type topPosterView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	ImageURL  string `json:"imageURL"`
	Verified  bool   `json:"verified"`
	PostCount int    `json:"postCount"`
}

type contributorView struct {
	topPosterView
	CommentCount int `json:"commentCount"`
	Total        int `json:"total"`
}

// handleMostPosts ranks the top five authors by stored post count. Authors
// whose account no longer resolves are skipped, so fewer than five rows can
// come back.
func (s *Server) handleMostPosts(w http.ResponseWriter, _ *http.Request) {
	postCounts, _, err := s.posts.ContributionCounts()
	if err != nil {
		s.fail(w, err)
		return
	}

	type entry struct {
		username string
		count    int
	}
	entries := lo.MapToSlice(postCounts, func(username string, count int) entry {
		return entry{username: username, count: count}
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].username < entries[j].username
	})
	if len(entries) > topPostsLimit {
		entries = entries[:topPostsLimit]
	}

	views := make([]topPosterView, 0, len(entries))
	for _, e := range entries {
		user, err := s.users.GetByUsername(e.username)
		if errors.Is(err, apperrors.ErrUserNotFound) {
			continue
		}
		if err != nil {
			s.fail(w, err)
			return
		}
		views = append(views, topPosterView{
			ID:        user.ID,
			Name:      user.Name,
			Username:  user.Username,
			ImageURL:  user.ImageURL,
			Verified:  user.Verified,
			PostCount: e.count,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

// handleMostContributions ranks contributors by posts plus comments.
func (s *Server) handleMostContributions(w http.ResponseWriter, _ *http.Request) {
	postCounts, commentCounts, err := s.posts.ContributionCounts()
	if err != nil {
		s.fail(w, err)
		return
	}

	usernames := lo.Union(lo.Keys(postCounts), lo.Keys(commentCounts))
	views := make([]contributorView, 0, len(usernames))
	for _, username := range usernames {
		user, err := s.users.GetByUsername(username)
		if errors.Is(err, apperrors.ErrUserNotFound) {
			continue
		}
		if err != nil {
			s.fail(w, err)
			return
		}
		views = append(views, contributorView{
			topPosterView: topPosterView{
				ID:        user.ID,
				Name:      user.Name,
				Username:  user.Username,
				ImageURL:  user.ImageURL,
				Verified:  user.Verified,
				PostCount: postCounts[username],
			},
			CommentCount: commentCounts[username],
			Total:        postCounts[username] + commentCounts[username],
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Total != views[j].Total {
			return views[i].Total > views[j].Total
		}
		return views[i].Username < views[j].Username
	})
	if len(views) > topPostsLimit {
		views = views[:topPostsLimit]
	}
	s.writeJSON(w, http.StatusOK, views)
}
