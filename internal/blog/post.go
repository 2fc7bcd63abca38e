package blog

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrSlugTaken       = errors.New("slug already taken")
	ErrInvalidCategory = errors.New("invalid category")
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Author is embedded in the post, not referenced.
type Author struct {
	Name   string `bson:"name" json:"name"`
	Email  string `bson:"email" json:"email"`
	Avatar string `bson:"avatar,omitempty" json:"avatar,omitempty"`
}

// CategorySnapshot is a denormalized copy of the category at the time the
// post was created or last updated. Edits to the canonical category do not
// propagate here, that is a product decision, not a bug.
type CategorySnapshot struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Slug  string             `bson:"slug" json:"slug"`
	Color string             `bson:"color,omitempty" json:"color,omitempty"`
}

// TagSnapshot is a denormalized copy of a tag, same trade-off as
// CategorySnapshot.
type TagSnapshot struct {
	ID   primitive.ObjectID `bson:"_id" json:"id"`
	Name string             `bson:"name" json:"name"`
	Slug string             `bson:"slug" json:"slug"`
}

type SEO struct {
	MetaTitle       string   `bson:"metaTitle,omitempty" json:"metaTitle,omitempty"`
	MetaDescription string   `bson:"metaDescription,omitempty" json:"metaDescription,omitempty"`
	Keywords        []string `bson:"keywords,omitempty" json:"keywords,omitempty"`
	OGTitle         string   `bson:"ogTitle,omitempty" json:"ogTitle,omitempty"`
	OGDescription   string   `bson:"ogDescription,omitempty" json:"ogDescription,omitempty"`
	OGImage         string   `bson:"ogImage,omitempty" json:"ogImage,omitempty"`
	CanonicalURL    string   `bson:"canonicalUrl,omitempty" json:"canonicalUrl,omitempty"`
}

type Post struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title         string             `bson:"title" json:"title"`
	Slug          string             `bson:"slug" json:"slug"`
	Excerpt       string             `bson:"excerpt" json:"excerpt"`
	Content       string             `bson:"content" json:"content"`
	FeaturedImage string             `bson:"featuredImage,omitempty" json:"featuredImage,omitempty"`
	Author        Author             `bson:"author" json:"author"`
	Category      CategorySnapshot   `bson:"category" json:"category"`
	Tags          []TagSnapshot      `bson:"tags" json:"tags"`
	Status        Status             `bson:"status" json:"status"`
	PublishedAt   *time.Time         `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	ScheduledAt   *time.Time         `bson:"scheduledAt,omitempty" json:"scheduledAt,omitempty"`
	ReadingTime   int                `bson:"readingTime" json:"readingTime"`
	Views         int                `bson:"views" json:"views"`
	Likes         int                `bson:"likes" json:"likes"`
	SEO           SEO                `bson:"seo" json:"seo"`
	Featured      bool               `bson:"featured" json:"featured"`
	AllowComments bool               `bson:"allowComments" json:"allowComments"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Comment belongs to a post, optionally threaded under a parent comment.
// Comments are cascade deleted together with their post.
type Comment struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	PostID    primitive.ObjectID  `bson:"postId" json:"postId"`
	ParentID  *primitive.ObjectID `bson:"parentId,omitempty" json:"parentId,omitempty"`
	Author    Author              `bson:"author" json:"author"`
	Content   string              `bson:"content" json:"content"`
	Approved  bool                `bson:"approved" json:"approved"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}

type ListParams struct {
	Query        string
	CategorySlug string
	Tags         []string
	Status       Status
	AuthorEmail  string
	Featured     *bool
	DateFrom     *time.Time
	DateTo       *time.Time
	Page         int
	Limit        int
	SortBy       string
	SortOrder    string
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

type PostsPage struct {
	Posts      []*Post    `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

type Stats struct {
	TotalPosts      int64 `json:"totalPosts"`
	PublishedPosts  int64 `json:"publishedPosts"`
	DraftPosts      int64 `json:"draftPosts"`
	TotalCategories int64 `json:"totalCategories"`
	TotalTags       int64 `json:"totalTags"`
	TotalViews      int64 `json:"totalViews"`
	TotalLikes      int64 `json:"totalLikes"`
}
