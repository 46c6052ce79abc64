// Package docstore persists normalized case documents keyed by filter.
package docstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is a document store addressed by collection and equality filter.
// Ids are assigned by the store and reported separately from the document.
type Store interface {
	// FindOne decodes the first document matching filter into out.
	FindOne(ctx context.Context, collection string, filter bson.M, out interface{}) (id string, found bool, err error)
	// Upsert replaces the document matching filter, or inserts doc, and
	// returns the id of the stored document.
	Upsert(ctx context.Context, collection string, filter bson.M, doc interface{}) (id string, err error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
