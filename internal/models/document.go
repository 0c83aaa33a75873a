package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is implemented by every stored resource type.
type Document interface {
	Identifier() primitive.ObjectID
	CollectionName() string
	ToWire() bson.M
}

// Stampable documents receive their creation date from the service layer.
type Stampable interface {
	Document
	SetID(id primitive.ObjectID)
	SetCreatedOn(t time.Time)
}

// Decode errors reported by DecodeStrict.
var (
	ErrMalformedPayload = errors.New("malformed JSON payload")
	ErrUnknownField     = errors.New("unknown field")
)

// DecodeStrict decodes a single JSON object into dest, rejecting fields that
// dest does not declare.
func DecodeStrict(r io.Reader, dest interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if strings.HasPrefix(err.Error(), "json: unknown field") {
			return errors.Join(ErrUnknownField, err)
		}
		return errors.Join(ErrMalformedPayload, err)
	}
	if dec.More() {
		return ErrMalformedPayload
	}
	return nil
}

// DecodeStrictBytes is DecodeStrict over an in-memory payload.
func DecodeStrictBytes(raw []byte, dest interface{}) error {
	return DecodeStrict(bytes.NewReader(raw), dest)
}

// putString sets key only when value is not empty, matching the omitempty
// bson tags of optional fields.
func putString(doc bson.M, key, value string) {
	if value != "" {
		doc[key] = value
	}
}

// wireWithID adds the identifier and creation date to a wire document.
func wireWithID(doc bson.M, id primitive.ObjectID, created time.Time) bson.M {
	if !id.IsZero() {
		doc["_id"] = id
	}
	if !created.IsZero() {
		doc["created_on"] = created.UTC()
	}
	return doc
}
