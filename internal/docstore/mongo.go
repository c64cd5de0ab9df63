package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/starford/ideashare/internal/apperr"
)

// codeNoQueryExecutionPlans is returned by servers running with notablescan
// when a query has no usable index.
const codeNoQueryExecutionPlans = 291

const versionField = "version"

// Mongo implements Store on a MongoDB database. Each collection maps to a
// MongoDB collection; ids are ObjectID hex strings.
type Mongo struct {
	client  *mongo.Client
	db      *mongo.Database
	indexes *IndexSet
}

// OpenMongo connects to uri, pings the server and creates the declared
// indexes.
func OpenMongo(ctx context.Context, uri, database string, timeout time.Duration, indexes *IndexSet) (*Mongo, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("docstore: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("docstore: mongo ping: %w", err)
	}
	if indexes == nil {
		indexes = &IndexSet{}
	}
	m := &Mongo{client: client, db: client.Database(database), indexes: indexes}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	for _, ix := range m.indexes.All() {
		keys := bson.D{}
		for _, f := range ix.Fields {
			keys = append(keys, bson.E{Key: f, Value: 1})
		}
		model := mongo.IndexModel{Keys: keys, Options: options.Index().SetName(ix.Name())}
		if _, err := m.db.Collection(ix.Collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("docstore: create index %s: %w", ix.Name(), err)
		}
	}
	return nil
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

// Create inserts a new document.
func (m *Mongo) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if !ValidIdent(collection) {
		return "", apperr.Write("create", fmt.Errorf("invalid collection %q", collection))
	}
	id := primitive.NewObjectID().Hex()
	doc := bson.M{}
	for k, v := range fields {
		doc[k] = v
	}
	doc["_id"] = id
	doc[versionField] = int64(0)
	if _, err := m.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", apperr.Write("create", err)
	}
	return id, nil
}

// Query runs q against collection.
func (m *Mongo) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(collection, q); err != nil {
		return nil, apperr.Read("query", err)
	}
	if err := m.indexes.Check(collection, q); err != nil {
		return nil, apperr.Read("query", err)
	}

	opts := options.Find()
	if q.OrderBy != nil {
		dir := 1
		if q.OrderBy.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy.Field, Value: dir}, {Key: "_id", Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := m.db.Collection(collection).Find(ctx, mongoFilter(q.Filters), opts)
	if err != nil {
		return nil, apperr.Read("query", mapMongoErr(err))
	}
	defer cursor.Close(ctx)

	var out []Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, apperr.Read("query", err)
		}
		out = append(out, fromBSON(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.Read("query", mapMongoErr(err))
	}
	return out, nil
}

// Get returns a single document.
func (m *Mongo) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, apperr.Read("get", apperr.ErrNotFound)
	}
	if err != nil {
		return Document{}, apperr.Read("get", err)
	}
	return fromBSON(raw), nil
}

// Update merges fields into the document and bumps its version.
func (m *Mongo) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	res, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, setAndBump(fields))
	if err != nil {
		return apperr.Write("update", err)
	}
	if res.MatchedCount == 0 {
		return apperr.Write("update", apperr.ErrNotFound)
	}
	return nil
}

// UpdateIfVersion merges fields only when the stored version matches.
func (m *Mongo) UpdateIfVersion(ctx context.Context, collection, id string, version int64, fields map[string]any) error {
	coll := m.db.Collection(collection)
	res, err := coll.UpdateOne(ctx, bson.M{"_id": id, versionField: version}, setAndBump(fields))
	if err != nil {
		return apperr.Write("update", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Write("update", err)
	}
	if n == 0 {
		return apperr.Write("update", apperr.ErrNotFound)
	}
	return apperr.Write("update", fmt.Errorf("%w: version %d is stale", apperr.ErrConflict, version))
}

func setAndBump(fields map[string]any) bson.M {
	set := bson.M{}
	for k, v := range fields {
		if k == "_id" || k == versionField {
			continue
		}
		set[k] = v
	}
	update := bson.M{"$inc": bson.M{versionField: 1}}
	if len(set) > 0 {
		update["$set"] = set
	}
	return update
}

var mongoOps = map[Op]string{
	OpGt:  "$gt",
	OpGte: "$gte",
	OpLt:  "$lt",
	OpLte: "$lte",
}

func mongoFilter(filters []Filter) bson.M {
	out := bson.M{}
	for _, f := range filters {
		if f.Op == OpEq {
			out[f.Field] = f.Value
			continue
		}
		cond, _ := out[f.Field].(bson.M)
		if cond == nil {
			cond = bson.M{}
			out[f.Field] = cond
		}
		cond[mongoOps[f.Op]] = f.Value
	}
	return out
}

func mapMongoErr(err error) error {
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(codeNoQueryExecutionPlans) {
		return fmt.Errorf("%w: %v", apperr.ErrMissingIndex, err)
	}
	return err
}

func fromBSON(raw bson.M) Document {
	doc := Document{Fields: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "_id":
			doc.ID = fmt.Sprint(v)
		case versionField:
			doc.Version = toInt64(v)
		default:
			doc.Fields[k] = normalize(v)
		}
	}
	return doc
}

// normalize converts driver container types into plain maps and slices so
// documents look the same regardless of backend.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalize(vv)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalize(vv)
		}
		return out
	case int32:
		return int64(t)
	case primitive.DateTime:
		return t.Time().UnixMilli()
	default:
		return v
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

// Verify *Mongo satisfies Store at compile time.
var _ Store = (*Mongo)(nil)
