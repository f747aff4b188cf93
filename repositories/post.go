//go:generate go run go.uber.org/mock/mockgen -source=post.go -destination=../mocks/mock_post_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"trenchsocial/domain"
	apperrors "trenchsocial/errors"
)

const postKeyPrefix = "post:"

type IPostRepository interface {
	Create(post domain.Post) (domain.Post, error)
	List() ([]domain.Post, error)
	ByAuthor(username string) ([]domain.Post, error)
	Delete(id uuid.UUID) error
	AddComment(postID uuid.UUID, comment domain.Comment) (domain.Comment, error)
	RemoveComment(postID, commentID uuid.UUID) error
	ToggleLike(postID uuid.UUID, userID string) (domain.Post, error)
	ToggleRetruth(postID uuid.UUID, userID string) (domain.Post, error)
	ToggleCommentLike(postID, commentID uuid.UUID, userID string) (domain.Comment, error)
	MostLiked(limit int) ([]domain.Post, error)
	MostRetruthed(limit int) ([]domain.Post, error)
	ContributionCounts() (posts, comments map[string]int, err error)
}

// PostRepository stores timeline posts as whole documents keyed by id.
// Comments and reaction sets are embedded in the post record and mutated
// with read-modify-write transactions, mirroring the one-document-per-post
// shape of the API.
type PostRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewPostRepository(db *badger.DB, log *slog.Logger) *PostRepository {
	return &PostRepository{db: db, log: log}
}

func postKey(id uuid.UUID) []byte {
	return []byte(postKeyPrefix + id.String())
}

func (r *PostRepository) Create(post domain.Post) (domain.Post, error) {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if post.Likes == nil {
		post.Likes = []string{}
	}
	if post.Retruths == nil {
		post.Retruths = []string{}
	}
	if post.Comments == nil {
		post.Comments = []domain.Comment{}
	}
	if err := r.write(post); err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) write(post domain.Post) error {
	bytes, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshal post: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(postKey(post.ID), bytes)
	})
	if err != nil {
		return fmt.Errorf("%w: write post: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// List returns every post, newest first.
func (r *PostRepository) List() ([]domain.Post, error) {
	posts, err := r.scan()
	if err != nil {
		return nil, err
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

func (r *PostRepository) ByAuthor(username string) ([]domain.Post, error) {
	posts, err := r.List()
	if err != nil {
		return nil, err
	}
	return lo.Filter(posts, func(post domain.Post, _ int) bool {
		return post.Author == username
	}), nil
}

func (r *PostRepository) Delete(id uuid.UUID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		key := postKey(id)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: delete post: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// mutate applies fn to the stored post inside one transaction and persists
// the result, so two concurrent reactions cannot lose each other's update.
func (r *PostRepository) mutate(postID uuid.UUID, fn func(*domain.Post) error) (domain.Post, error) {
	var post domain.Post
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(postKey(postID))
		if err != nil {
			return err
		}
		if err = item.Value(func(value []byte) error {
			return json.Unmarshal(value, &post)
		}); err != nil {
			return err
		}
		if err = fn(&post); err != nil {
			return err
		}
		bytes, err := json.Marshal(post)
		if err != nil {
			return err
		}
		return txn.Set(postKey(postID), bytes)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Post{}, apperrors.ErrPostNotFound
	}
	if stderrors.Is(err, apperrors.ErrCommentNotFound) {
		return domain.Post{}, err
	}
	if err != nil {
		return domain.Post{}, fmt.Errorf("%w: mutate post: %v", apperrors.ErrStoreUnavailable, err)
	}
	return post, nil
}

func (r *PostRepository) AddComment(postID uuid.UUID, comment domain.Comment) (domain.Comment, error) {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	if comment.Likes == nil {
		comment.Likes = []string{}
	}
	_, err := r.mutate(postID, func(post *domain.Post) error {
		post.Comments = append(post.Comments, comment)
		return nil
	})
	return comment, err
}

func (r *PostRepository) RemoveComment(postID, commentID uuid.UUID) error {
	_, err := r.mutate(postID, func(post *domain.Post) error {
		kept := lo.Reject(post.Comments, func(comment domain.Comment, _ int) bool {
			return comment.ID == commentID
		})
		if len(kept) == len(post.Comments) {
			return apperrors.ErrCommentNotFound
		}
		post.Comments = kept
		return nil
	})
	return err
}

// ToggleLike adds userID to the post's like set, or removes it when already
// present. Membership is checked inside the transaction so two concurrent
// toggles cannot double-add.
func (r *PostRepository) ToggleLike(postID uuid.UUID, userID string) (domain.Post, error) {
	return r.mutate(postID, func(post *domain.Post) error {
		post.Likes = toggleMembership(post.Likes, userID)
		return nil
	})
}

func (r *PostRepository) ToggleRetruth(postID uuid.UUID, userID string) (domain.Post, error) {
	return r.mutate(postID, func(post *domain.Post) error {
		post.Retruths = toggleMembership(post.Retruths, userID)
		return nil
	})
}

func toggleMembership(set []string, member string) []string {
	if lo.Contains(set, member) {
		return lo.Reject(set, func(existing string, _ int) bool {
			return existing == member
		})
	}
	return append(set, member)
}

// ToggleCommentLike toggles userID in one comment's like set and returns the
// updated comment.
func (r *PostRepository) ToggleCommentLike(postID, commentID uuid.UUID, userID string) (domain.Comment, error) {
	var updated domain.Comment
	_, err := r.mutate(postID, func(post *domain.Post) error {
		for i := range post.Comments {
			if post.Comments[i].ID == commentID {
				post.Comments[i].Likes = toggleMembership(post.Comments[i].Likes, userID)
				updated = post.Comments[i]
				return nil
			}
		}
		return apperrors.ErrCommentNotFound
	})
	if err != nil {
		return domain.Comment{}, err
	}
	return updated, nil
}

func (r *PostRepository) MostLiked(limit int) ([]domain.Post, error) {
	return r.top(limit, func(post domain.Post) int { return len(post.Likes) })
}

func (r *PostRepository) MostRetruthed(limit int) ([]domain.Post, error) {
	return r.top(limit, func(post domain.Post) int { return len(post.Retruths) })
}

func (r *PostRepository) top(limit int, score func(domain.Post) int) ([]domain.Post, error) {
	posts, err := r.scan()
	if err != nil {
		return nil, err
	}
	sort.Slice(posts, func(i, j int) bool {
		return score(posts[i]) > score(posts[j])
	})
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// ContributionCounts tallies stored posts and comments per author username,
// feeding the contributor leaderboards.
func (r *PostRepository) ContributionCounts() (map[string]int, map[string]int, error) {
	all, err := r.scan()
	if err != nil {
		return nil, nil, err
	}
	posts := make(map[string]int)
	comments := make(map[string]int)
	for _, post := range all {
		posts[post.Author]++
		for _, comment := range post.Comments {
			comments[comment.Author]++
		}
	}
	return posts, comments, nil
}

func (r *PostRepository) scan() ([]domain.Post, error) {
	var posts []domain.Post
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(postKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var post domain.Post
				if err := json.Unmarshal(value, &post); err != nil {
					return err
				}
				posts = append(posts, post)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan posts: %v", apperrors.ErrStoreUnavailable, err)
	}
	return posts, nil
}
