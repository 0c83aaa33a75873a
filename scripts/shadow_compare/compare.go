package main

import (
	"fmt"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// envelopeFields are the response envelope members compared between
// deployments. The human readable message is left out.
var envelopeFields = []string{"code", "count", "limit", "result"}

// parseEnvelope decodes a response body as extended JSON so object ids and
// dates compare by value whichever notation a deployment used.
func parseEnvelope(raw []byte) (bson.M, error) {
	var doc bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return doc, nil
}

// envelopeDiff returns the envelope fields that differ between two bodies,
// skipping the ignored ones.
func envelopeDiff(a, b []byte, ignore []string) ([]string, error) {
	aDoc, err := parseEnvelope(a)
	if err != nil {
		return nil, err
	}
	bDoc, err := parseEnvelope(b)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(ignore))
	for _, key := range ignore {
		skip[key] = struct{}{}
	}
	var diff []string
	for _, field := range envelopeFields {
		if _, ok := skip[field]; ok {
			continue
		}
		av, aok := aDoc[field]
		bv, bok := bDoc[field]
		if aok != bok || !reflect.DeepEqual(normalize(av), normalize(bv)) {
			diff = append(diff, field)
		}
	}
	return diff, nil
}

// normalize maps decoded values onto one representation per kind: documents
// become maps, numbers become float64 and dates become UTC times.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case primitive.DateTime:
		return val.Time().UTC().Truncate(time.Millisecond)
	default:
		return v
	}
}
