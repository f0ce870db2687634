package domain

import (
	"slices"
	"time"
)

// Author is the commenter as they were when the comment was written.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Comment is a note on a task. ParentID, when set, points at a top-level comment of the
// same task; replies to replies are rejected.
type Comment struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	Author    Author     `json:"author"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Likes     int        `json:"likes"`
	LikedBy   []string   `json:"likedBy"`
	IsEdited  bool       `json:"isEdited"`
	ParentID  *string    `json:"parentId,omitempty"`
}

// IsReply reports whether the comment answers another comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}

// Like adds userID to likedBy once.
func (c *Comment) Like(userID string) {
	c.LikedBy = addLike(c.LikedBy, userID)
	c.Likes = len(c.LikedBy)
}

// Unlike removes userID from likedBy.
func (c *Comment) Unlike(userID string) {
	c.LikedBy = removeLike(c.LikedBy, userID)
	c.Likes = len(c.LikedBy)
}

// IsLikedBy reports whether userID liked the comment.
func (c *Comment) IsLikedBy(userID string) bool {
	return slices.Contains(c.LikedBy, userID)
}

// CommentDraft is the input for adding a comment.
type CommentDraft struct {
	Content  string  `json:"content"`
	Author   Author  `json:"author"`
	ParentID *string `json:"parentId,omitempty"`
}

// ValidateReply checks that a reply targets an existing top-level comment among comments.
func ValidateReply(comments []Comment, parentID string) error {
	for _, c := range comments {
		if c.ID != parentID {
			continue
		}
		if c.IsReply() {
			return ErrNestedReply
		}
		return nil
	}
	return ErrParentNotFound
}
