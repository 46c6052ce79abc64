package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryEntry struct {
	id  string
	doc []byte
}

// Memory keeps documents in process, encoded as BSON so reads never alias
// what was written. Documents never expire.
type Memory struct {
	items *cache.Cache
}

func NewMemory() *Memory {
	return &Memory{items: cache.New(cache.NoExpiration, 0)}
}

// memoryKey derives a stable key from an equality filter.
func memoryKey(collection string, filter bson.M) string {
	names := make([]string, 0, len(filter))
	for k := range filter {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(collection)
	for _, k := range names {
		fmt.Fprintf(&b, "|%s=%v", k, filter[k])
	}
	return b.String()
}

func (m *Memory) FindOne(_ context.Context, collection string, filter bson.M, out interface{}) (string, bool, error) {
	v, ok := m.items.Get(memoryKey(collection, filter))
	if !ok {
		return "", false, nil
	}
	entry := v.(memoryEntry)
	if err := bson.Unmarshal(entry.doc, out); err != nil {
		return "", false, eris.Wrap(err, "failed to decode cached document")
	}
	return entry.id, true, nil
}

func (m *Memory) Upsert(_ context.Context, collection string, filter bson.M, doc interface{}) (string, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return "", eris.Wrap(err, "failed to encode document")
	}

	key := memoryKey(collection, filter)
	id := primitive.NewObjectID().Hex()
	if v, ok := m.items.Get(key); ok {
		id = v.(memoryEntry).id
	}
	m.items.Set(key, memoryEntry{id: id, doc: data}, cache.NoExpiration)
	return id, nil
}

// Len reports the number of stored documents.
func (m *Memory) Len() int {
	return m.items.ItemCount()
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close(context.Context) error {
	m.items.Flush()
	return nil
}
