package tags

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tag is the canonical tag record. Posts embed snapshot copies of it,
// so later edits here do not propagate to already tagged posts.
type Tag struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Slug      string             `bson:"slug" json:"slug"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// PopularTag is a tag together with the number of posts embedding it.
type PopularTag struct {
	Tag   `bson:",inline"`
	Count int64 `bson:"count" json:"count"`
}
