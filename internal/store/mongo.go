package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/royglick/laboneq/pkg/workflow"
)

// MongoStore is a RunStore backed by a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

var _ RunStore = (*MongoStore)(nil)

// NewMongoStore creates a Mongo-backed run store.
// dbName defaults to "labq" if empty, collName defaults to "runs".
func NewMongoStore(client *mongo.Client, dbName, collName string) *MongoStore {
	if dbName == "" {
		dbName = "labq"
	}
	if collName == "" {
		collName = "runs"
	}
	return &MongoStore{coll: client.Database(dbName).Collection(collName)}
}

type mongoRunDoc struct {
	ID       string `bson:"_id"`
	Workflow string `bson:"workflow"`
	Status   string `bson:"status"`
	Input    []byte `bson:"input,omitempty"`
	Output   []byte `bson:"output,omitempty"`
	Tasks    []byte `bson:"tasks,omitempty"`
	Error    string `bson:"error,omitempty"`
}

func mongoDoc(run *workflow.Run) (mongoRunDoc, error) {
	input, output, tasks, errStr, err := encodeRun(run)
	if err != nil {
		return mongoRunDoc{}, err
	}
	return mongoRunDoc{
		ID:       run.ID,
		Workflow: run.Workflow,
		Status:   string(run.Status),
		Input:    input,
		Output:   output,
		Tasks:    tasks,
		Error:    errStr,
	}, nil
}

func (d mongoRunDoc) run() (*workflow.Run, error) {
	inVal, err := decodeInput(d.Input)
	if err != nil {
		return nil, err
	}
	outVal, err := decodeValue(d.Output)
	if err != nil {
		return nil, err
	}
	taskVal, err := decodeTasks(d.Tasks)
	if err != nil {
		return nil, err
	}

	run := &workflow.Run{
		ID:       d.ID,
		Workflow: d.Workflow,
		Status:   workflow.Status(d.Status),
		Input:    inVal,
		Output:   outVal,
		Tasks:    taskVal,
	}
	if d.Error != "" {
		run.Err = errors.New(d.Error)
	}
	return run, nil
}

func (s *MongoStore) SaveRun(run *workflow.Run) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc, err := mongoDoc(run)
	if err != nil {
		return err
	}
	_, err = s.coll.InsertOne(ctx, doc)
	return err
}

func (s *MongoStore) UpdateRun(run *workflow.Run) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc, err := mongoDoc(run)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{
		"workflow": doc.Workflow,
		"status":   doc.Status,
		"input":    doc.Input,
		"output":   doc.Output,
		"tasks":    doc.Tasks,
		"error":    doc.Error,
	}}

	res, err := s.coll.UpdateByID(ctx, run.ID, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (s *MongoStore) GetRun(id string) (*workflow.Run, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var doc mongoRunDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return doc.run()
}

func (s *MongoStore) ListRuns(filter RunFilter) ([]*workflow.Run, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bfilter := bson.M{}
	if filter.Workflow != "" {
		bfilter["workflow"] = filter.Workflow
	}
	if filter.Status != "" {
		bfilter["status"] = string(filter.Status)
	}

	cur, err := s.coll.Find(ctx, bfilter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var runs []*workflow.Run
	for cur.Next(ctx) {
		var doc mongoRunDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		run, err := doc.run()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
