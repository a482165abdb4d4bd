package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore is a MetadataStore backed by MongoDB. The conditional
// operations are expressed as aggregation-pipeline updates passed to
// FindOneAndUpdate so the read-branch-write happens atomically on the
// server without a distributed lock.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Credentials holds the Mongo authentication settings. A zero-value
// Credentials (no Username) leaves the client's auth unset, relying on
// whatever the URI itself carries.
type Credentials struct {
	Username   string
	Password   string
	AuthSource string
}

// NewMongoStore connects to uri and returns a MongoStore backed by
// database.collection. It pings the server before returning and creates
// the unique index on "question" that the conditional operations rely on.
// If creds.Username is set, the connection authenticates with it rather
// than relying solely on credentials embedded in uri.
func NewMongoStore(ctx context.Context, uri, database, collection string, creds Credentials) (*MongoStore, error) {
	clientOpts := options.Client().ApplyURI(uri)
	if creds.Username != "" {
		clientOpts.SetAuth(options.Credential{
			Username:   creds.Username,
			Password:   creds.Password,
			AuthSource: creds.AuthSource,
		})
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	col := client.Database(database).Collection(collection)
	if _, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "question", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("create question index: %w", err)
	}

	return &MongoStore{client: client, collection: col}, nil
}

// ConditionalEnqueueAsker implements the MetadataStore contract; see
// store.go for the semantics.
func (s *MongoStore) ConditionalEnqueueAsker(ctx context.Context, question, replyTo, correlationID string) (QuestionRecord, error) {
	normalized := Normalize(question)
	if normalized == "" {
		return QuestionRecord{}, errors.New("question must not be empty")
	}

	filter := bson.D{{Key: "question", Value: normalized}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result *mongo.SingleResult
	if replyTo == "" || correlationID == "" {
		result = s.collection.FindOneAndUpdate(ctx, filter,
			bson.D{{Key: "$set", Value: bson.D{{Key: "question", Value: normalized}}}}, opts)
	} else {
		pending := bson.D{{Key: "reply_to", Value: replyTo}, {Key: "correlation_id", Value: correlationID}}
		pipeline := mongo.Pipeline{
			bson.D{{Key: "$set", Value: bson.D{{Key: "pending_askers", Value: bson.D{
				{Key: "$switch", Value: bson.D{
					{Key: "branches", Value: bson.A{
						bson.D{
							{Key: "case", Value: bson.D{{Key: "$and", Value: bson.A{
								bson.D{{Key: "$lte", Value: bson.A{"$answer", nil}}},
								bson.D{{Key: "$lte", Value: bson.A{"$pending_askers", nil}}},
							}}}},
							{Key: "then", Value: bson.A{pending}},
						},
						bson.D{
							{Key: "case", Value: bson.D{{Key: "$and", Value: bson.A{
								bson.D{{Key: "$lte", Value: bson.A{"$answer", nil}}},
								bson.D{{Key: "$not", Value: bson.A{
									bson.D{{Key: "$in", Value: bson.A{replyTo, "$pending_askers.reply_to"}}},
								}}},
							}}}},
							{Key: "then", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
								"$pending_askers",
								bson.A{pending},
							}}}},
						},
					}},
					{Key: "default", Value: "$pending_askers"},
				}},
			}}}}},
		}
		result = s.collection.FindOneAndUpdate(ctx, filter, pipeline, opts)
	}

	var doc QuestionRecord
	if err := result.Decode(&doc); err != nil {
		return QuestionRecord{}, fmt.Errorf("enqueue asker: %w", err)
	}
	return doc, nil
}

// ConditionalSetAnswer implements the MetadataStore contract; see store.go
// for the semantics.
func (s *MongoStore) ConditionalSetAnswer(ctx context.Context, question, answer string) (QuestionRecord, error) {
	normalized := Normalize(question)
	if normalized == "" {
		return QuestionRecord{}, errors.New("question must not be empty")
	}
	correctedAnswer := answer
	if correctedAnswer == "" {
		return QuestionRecord{}, errors.New("answer must not be empty")
	}

	filter := bson.D{{Key: "question", Value: normalized}}
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$replaceWith", Value: bson.D{{Key: "$cond", Value: bson.D{
			{Key: "if", Value: bson.D{{Key: "$lte", Value: bson.A{"$answer", nil}}}},
			{Key: "then", Value: bson.D{
				{Key: "_id", Value: "$_id"},
				{Key: "question", Value: "$question"},
				{Key: "answer", Value: correctedAnswer},
			}},
			{Key: "else", Value: "$$ROOT"},
		}}}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before)

	result := s.collection.FindOneAndUpdate(ctx, filter, pipeline, opts)

	var preImage QuestionRecord
	err := result.Decode(&preImage)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// No document existed before the upsert: nothing was pending.
		return QuestionRecord{Question: normalized, Answer: correctedAnswer}, nil
	}
	if err != nil {
		return QuestionRecord{}, fmt.Errorf("set answer: %w", err)
	}
	if !preImage.HasAnswer() {
		preImage.Answer = correctedAnswer
	}
	return preImage, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
