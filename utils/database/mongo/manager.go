package manager

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDBManager struct {
	client           *mongo.Client
	moduleCollection *mongo.Collection
}

// StoredModule is the persisted shape of one module. Rendered holds the
// canonical JSON of the full metadata document, releases already
// decoded, ordered and cleaned, so reads never re-run the lenient
// decode. The remaining fields are projections for list endpoints.
type StoredModule struct {
	Identifier string    `bson:"_id" json:"identifier"`
	Name       string    `bson:"name" json:"name"`
	Abstract   string    `bson:"abstract,omitempty" json:"abstract,omitempty"`
	Author     []string  `bson:"author,omitempty" json:"author,omitempty"`
	Tags       []string  `bson:"tags,omitempty" json:"tags,omitempty"`
	Versions   []string  `bson:"versions" json:"versions"`
	Latest     string    `bson:"latest,omitempty" json:"latest,omitempty"`
	Source     string    `bson:"source" json:"source"`
	Publisher  string    `bson:"publisher,omitempty" json:"publisher,omitempty"`
	UploadID   string    `bson:"upload_id" json:"upload_id"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
	Rendered   []byte    `bson:"rendered" json:"-"`
}

func NewMongoDBManager(ctx context.Context, dbURL, db, modules string) (*MongoDBManager, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dbURL))
	if err != nil {
		return nil, err
	}
	return &MongoDBManager{
		client:           client,
		moduleCollection: client.Database(db).Collection(modules),
	}, nil
}

func (m *MongoDBManager) UpsertModule(ctx context.Context, module *StoredModule) (*mongo.UpdateResult, error) {
	return m.moduleCollection.ReplaceOne(ctx,
		bson.M{"_id": module.Identifier},
		module,
		options.Replace().SetUpsert(true),
	)
}

func (m *MongoDBManager) GetModule(ctx context.Context, identifier string) (*StoredModule, error) {
	var result StoredModule
	err := m.moduleCollection.FindOne(ctx, bson.M{"_id": identifier}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListModules returns one page of module summaries ordered by
// identifier. Rendered documents are left out of the projection, list
// responses only need the summary fields.
func (m *MongoDBManager) ListModules(ctx context.Context, page, pageSize int) ([]StoredModule, error) {
	if page < 1 {
		page = 1
	}
	opts := options.Find().
		SetSort(bson.M{"_id": 1}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize)).
		SetProjection(bson.M{"rendered": 0})
	cursor, err := m.moduleCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []StoredModule
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *MongoDBManager) CountModules(ctx context.Context) (int64, error) {
	return m.moduleCollection.CountDocuments(ctx, bson.M{})
}

func (m *MongoDBManager) DeleteModule(ctx context.Context, identifier string) (bool, error) {
	result, err := m.moduleCollection.DeleteOne(ctx, bson.M{"_id": identifier})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}
