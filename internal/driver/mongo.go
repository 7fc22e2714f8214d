package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Liyixin95/polars/internal/frame"
)

// MongoClient adapts the official mongo driver to the DocumentClient
// capability set. Queries use a find syntax:
//
//	users.find({"age": {"$gt": 18}})
//	mydb.users.find({})
//
// The database may also be selected up front with Use.
type MongoClient struct {
	uri      string
	client   *mongo.Client
	database string
}

func NewMongoClient(uri string) *MongoClient {
	return &MongoClient{uri: uri}
}

func (c *MongoClient) connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.uri))
	if err != nil {
		return err
	}
	c.client = client
	return nil
}

// Use selects the target database. The namespace argument exists for
// protocol parity with other document stores; mongo has no namespace level
// above the database, so it is ignored.
func (c *MongoClient) Use(ctx context.Context, namespace, database string) error {
	if err := c.connect(ctx); err != nil {
		return err
	}
	c.database = database
	return nil
}

func (c *MongoClient) Ping(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return err
	}
	return c.client.Ping(ctx, nil)
}

// Query runs a find and returns the materialized documents as a bare record
// sequence; there is no envelope to unwrap.
func (c *MongoClient) Query(ctx context.Context, query string, vars map[string]any) (any, error) {
	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	dbName, collName, filter, err := parseFindQuery(query)
	if err != nil {
		return nil, err
	}
	if dbName == "" {
		dbName = c.database
	}

	// Substitute bound variables referenced as "$name" string values.
	for key, val := range filter {
		if ref, ok := val.(string); ok && strings.HasPrefix(ref, "$") {
			if bound, exists := vars[strings.TrimPrefix(ref, "$")]; exists {
				filter[key] = bound
			}
		}
	}

	cursor, err := c.client.Database(dbName).Collection(collName).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []frame.Record
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		records = append(records, frame.Record(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *MongoClient) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}

// parseFindQuery splits "[db.]collection.find(filter)" into its parts.
func parseFindQuery(query string) (dbName, collName string, filter bson.M, err error) {
	start := strings.Index(query, "(")
	end := strings.LastIndex(query, ")")
	if start == -1 || end == -1 || end < start {
		return "", "", nil, errors.New("driver: invalid query format: expected collection.find(filter)")
	}

	rawFilter := strings.TrimSpace(query[start+1 : end])
	if rawFilter == "" {
		rawFilter = "{}"
	}
	if err := json.Unmarshal([]byte(rawFilter), &filter); err != nil {
		return "", "", nil, fmt.Errorf("driver: invalid filter JSON: %w", err)
	}

	segments := strings.Split(query[:start], ".")
	if segments[len(segments)-1] != "find" {
		return "", "", nil, errors.New("driver: only 'find' queries are supported")
	}

	switch len(segments) {
	case 3:
		dbName, collName = segments[0], segments[1]
	case 2:
		collName = segments[0]
	default:
		return "", "", nil, errors.New("driver: invalid query format: expected [db.]collection.find(...)")
	}
	return dbName, collName, filter, nil
}
