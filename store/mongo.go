// Copyright 2025 RelayCore
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// DefaultTimeout is the default per-operation timeout
	DefaultTimeout = 30 * time.Second
	// DefaultConnectTimeout is the default connection timeout
	DefaultConnectTimeout = 10 * time.Second
	// DefaultMaxPoolSize is the default maximum connection pool size
	DefaultMaxPoolSize = 100
	// DefaultMinPoolSize is the default minimum connection pool size
	DefaultMinPoolSize = 10

	// objectsCollection holds every polymorphic object of a partition
	objectsCollection = "objects"
)

// MongoPartitions maps organizations to MongoDB-backed partitions.
// One organization's data lives in one database named <prefix><orgID>;
// isolation between tenants is at the database level.
type MongoPartitions struct {
	client   *mongo.Client
	dbPrefix string
	logger   *log.Logger

	mu     sync.Mutex
	stores map[string]*MongoStore
}

// MongoPartitionsOptions holds options for connecting the partition set
type MongoPartitionsOptions struct {
	URI            string
	DatabasePrefix string
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout time.Duration
	Logger         *log.Logger
}

// NewMongoPartitions connects to MongoDB with pooling and verifies the
// connection with a ping before returning.
func NewMongoPartitions(ctx context.Context, opts MongoPartitionsOptions) (*MongoPartitions, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[OBJECT_STORE] ", log.LstdFlags)
	}

	if opts.URI == "" {
		return nil, fmt.Errorf("mongodb URI is required")
	}

	clientOpts := options.Client().ApplyURI(opts.URI)

	maxPool := opts.MaxPoolSize
	if maxPool == 0 {
		maxPool = DefaultMaxPoolSize
	}
	minPool := opts.MinPoolSize
	if minPool == 0 {
		minPool = DefaultMinPoolSize
	}
	clientOpts.SetMaxPoolSize(maxPool)
	clientOpts.SetMinPoolSize(minPool)
	clientOpts.SetAppName("RelayCore-ObjectStore")
	clientOpts.SetRetryWrites(true)
	clientOpts.SetRetryReads(true)

	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	clientOpts.SetConnectTimeout(connectTimeout)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	prefix := opts.DatabasePrefix
	if prefix == "" {
		prefix = "org_"
	}

	logger.Printf("Connected to MongoDB (max_pool=%d, prefix=%s)", maxPool, prefix)

	return &MongoPartitions{
		client:   client,
		dbPrefix: prefix,
		logger:   logger,
		stores:   make(map[string]*MongoStore),
	}, nil
}

// Partition returns the store for one organization's database
func (p *MongoPartitions) Partition(orgID string) Store {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.stores[orgID]; ok {
		return s
	}

	dbName := p.dbPrefix + sanitizeDatabaseName(orgID)
	s := &MongoStore{
		collection: p.client.Database(dbName).Collection(objectsCollection),
		logger:     p.logger,
	}
	p.stores[orgID] = s
	return s
}

// Ping verifies MongoDB connectivity for readiness checks
func (p *MongoPartitions) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.client.Ping(pingCtx, readpref.Primary())
}

// Disconnect closes the underlying client
func (p *MongoPartitions) Disconnect(ctx context.Context) error {
	disconnectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return p.client.Disconnect(disconnectCtx)
}

var databaseNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// sanitizeDatabaseName strips characters MongoDB forbids in database names
func sanitizeDatabaseName(orgID string) string {
	return databaseNameSanitizer.ReplaceAllString(orgID, "_")
}

// MongoStore implements Store over one tenant database.
// Every operation is atomic per document; no cross-document transactions are
// used or required.
type MongoStore struct {
	collection *mongo.Collection
	logger     *log.Logger
}

// Create persists a new object
func (s *MongoStore) Create(ctx context.Context, typ string, data, metadata map[string]interface{}, links []string) (*Object, error) {
	if err := validateNew(typ, data, metadata); err != nil {
		return nil, err
	}

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if links == nil {
		links = []string{}
	}

	now := time.Now().UTC()
	obj := &Object{
		ID:        uuid.New().String(),
		Type:      typ,
		Data:      data,
		Metadata:  metadata,
		Links:     links,
		CreatedAt: now,
		UpdatedAt: now,
	}

	opCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	if _, err := s.collection.InsertOne(opCtx, obj); err != nil {
		return nil, fmt.Errorf("failed to insert object: %w", err)
	}

	return obj, nil
}

// Get returns an object by id, soft-deleted or not
func (s *MongoStore) Get(ctx context.Context, id string) (*Object, error) {
	opCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var obj Object
	err := s.collection.FindOne(opCtx, bson.M{"_id": id}).Decode(&obj)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return &obj, nil
}

// List returns one page of objects of a type in creation order
func (s *MongoStore) List(ctx context.Context, typ string, opts ListOptions) (*Page, error) {
	if typ == "" {
		return nil, NewValidationError("type is required")
	}

	filter, err := s.buildListFilter(typ, opts)
	if err != nil {
		return nil, err
	}

	limit := normalizeLimit(opts.Limit)

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit) + 1) // fetch one extra to detect a next page
	if opts.Skip > 0 {
		findOpts.SetSkip(int64(opts.Skip))
	}

	opCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	cursor, err := s.collection.Find(opCtx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer func() { _ = cursor.Close(opCtx) }()

	items := make([]*Object, 0, limit)
	for cursor.Next(opCtx) {
		var obj Object
		if err := cursor.Decode(&obj); err != nil {
			return nil, fmt.Errorf("failed to decode object: %w", err)
		}
		items = append(items, &obj)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate objects: %w", err)
	}

	page := &Page{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

// buildListFilter translates ListOptions into a BSON filter
func (s *MongoStore) buildListFilter(typ string, opts ListOptions) (bson.M, error) {
	filter := bson.M{"type": typ}

	for key, value := range opts.Filter {
		section, sub, err := splitFilterKey(key)
		if err != nil {
			return nil, err
		}
		filter[section+"."+sub] = value
	}

	if opts.ExcludeDeleted {
		filter["deleted_at"] = nil
	}

	if opts.Cursor != "" {
		after, afterID, err := decodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$gt": after}},
			bson.M{"created_at": after, "_id": bson.M{"$gt": afterID}},
		}
	}

	return filter, nil
}

// Update merges data/metadata fields and replaces links atomically
func (s *MongoStore) Update(ctx context.Context, id string, patch Patch) (*Object, error) {
	if patch.Empty() {
		return s.Get(ctx, id)
	}
	if patch.Data != nil {
		if err := checkSerializable("data", patch.Data); err != nil {
			return nil, err
		}
	}
	if patch.Metadata != nil {
		if err := checkSerializable("metadata", patch.Metadata); err != nil {
			return nil, err
		}
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range patch.Data {
		set["data."+k] = v
	}
	for k, v := range patch.Metadata {
		set["metadata."+k] = v
	}
	if patch.Links != nil {
		links := *patch.Links
		if links == nil {
			links = []string{}
		}
		set["links"] = links
	}

	update := bson.M{"$set": set}
	if len(patch.Increments) > 0 {
		inc := bson.M{}
		for k, v := range patch.Increments {
			inc["data."+k] = v
		}
		update["$inc"] = inc
	}

	opCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var obj Object
	err := s.collection.FindOneAndUpdate(
		opCtx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&obj)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update object: %w", err)
	}
	return &obj, nil
}

// SoftDelete stamps deleted_at; last write wins under concurrent deleters
func (s *MongoStore) SoftDelete(ctx context.Context, id string) error {
	opCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	result, err := s.collection.UpdateOne(
		opCtx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete object: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByLink returns all objects, live or deleted, whose links contain targetID
func (s *MongoStore) FindByLink(ctx context.Context, targetID string) ([]*Object, error) {
	opCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	cursor, err := s.collection.Find(
		opCtx,
		bson.M{"links": targetID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find linked objects: %w", err)
	}
	defer func() { _ = cursor.Close(opCtx) }()

	var results []*Object
	for cursor.Next(opCtx) {
		var obj Object
		if err := cursor.Decode(&obj); err != nil {
			return nil, fmt.Errorf("failed to decode object: %w", err)
		}
		results = append(results, &obj)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate linked objects: %w", err)
	}
	return results, nil
}

// CompareAndSwapData conditionally sets data fields in a single atomic update
func (s *MongoStore) CompareAndSwapData(ctx context.Context, id, field string, old, new interface{}, extra map[string]interface{}) (bool, error) {
	set := bson.M{
		"data." + field: new,
		"updated_at":    time.Now().UTC(),
	}
	for k, v := range extra {
		set["data."+k] = v
	}

	opCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	result, err := s.collection.UpdateOne(
		opCtx,
		bson.M{"_id": id, "data." + field: old},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("failed to compare-and-swap: %w", err)
	}
	return result.MatchedCount > 0, nil
}
