package taskqueue

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// StoreOptions tells a task worker which document store to use.
type StoreOptions struct {
	URI      string `bson:"uri"`
	Database string `bson:"database"`
}

// Message is a task submitted to the queue.
type Message struct {
	ID          string       `bson:"id"`
	Task        string       `bson:"task"`
	Args        bson.A       `bson:"args"`
	Store       StoreOptions `bson:"store"`
	SubmittedAt time.Time    `bson:"submitted_at"`
}

// Result is the outcome a worker stores for a task.
type Result struct {
	TaskID     string    `bson:"task_id"`
	Status     int       `bson:"status"`
	Result     []bson.M  `bson:"result"`
	FinishedAt time.Time `bson:"finished_at"`
}

// The codec is canonical extended JSON: plain JSON plus $oid, $date and
// typed number markers, so store identifiers and dates survive the queue.

// EncodeMessage serialises a task message.
func EncodeMessage(m Message) ([]byte, error) {
	raw, err := bson.MarshalExtJSON(m, true, false)
	if err != nil {
		return nil, fmt.Errorf("encode task %s: %w", m.Task, err)
	}
	return raw, nil
}

// DecodeMessage parses a task message.
func DecodeMessage(raw []byte) (Message, error) {
	var m Message
	if err := bson.UnmarshalExtJSON(raw, true, &m); err != nil {
		return Message{}, fmt.Errorf("decode task message: %w", err)
	}
	return m, nil
}

// EncodeResult serialises a task result.
func EncodeResult(r Result) ([]byte, error) {
	raw, err := bson.MarshalExtJSON(r, true, false)
	if err != nil {
		return nil, fmt.Errorf("encode result of task %s: %w", r.TaskID, err)
	}
	return raw, nil
}

// DecodeResult parses a task result.
func DecodeResult(raw []byte) (Result, error) {
	var r Result
	if err := bson.UnmarshalExtJSON(raw, true, &r); err != nil {
		return Result{}, fmt.Errorf("decode task result: %w", err)
	}
	return r, nil
}
