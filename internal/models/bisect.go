package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Bisect records the regression range found for a failed boot or build.
type Bisect struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Type          string             `bson:"type"`
	DocumentID    primitive.ObjectID `bson:"document_id"`
	Job           string             `bson:"job"`
	Board         string             `bson:"board,omitempty"`
	DefconfigFull string             `bson:"defconfig_full,omitempty"`
	Lab           string             `bson:"lab_name,omitempty"`
	Arch          string             `bson:"arch,omitempty"`
	BadCommit     string             `bson:"bad_commit"`
	GoodCommit    string             `bson:"good_commit,omitempty"`
	BisectData    []bson.M           `bson:"bisect_data"`
	CreatedOn     time.Time          `bson:"created_on"`
}

func (b *Bisect) Identifier() primitive.ObjectID { return b.ID }
func (b *Bisect) CollectionName() string         { return CollectionBisect }
func (b *Bisect) SetID(id primitive.ObjectID)    { b.ID = id }
func (b *Bisect) SetCreatedOn(t time.Time)       { b.CreatedOn = t }

// ToWire returns the store representation of the bisect result.
func (b *Bisect) ToWire() bson.M {
	data := b.BisectData
	if data == nil {
		data = []bson.M{}
	}
	return wireWithID(bson.M{
		"type":           b.Type,
		"document_id":    b.DocumentID,
		"job":            b.Job,
		"board":          b.Board,
		"defconfig_full": b.DefconfigFull,
		"lab_name":       b.Lab,
		"arch":           b.Arch,
		"bad_commit":     b.BadCommit,
		"good_commit":    b.GoodCommit,
		"bisect_data":    data,
	}, b.ID, b.CreatedOn)
}
