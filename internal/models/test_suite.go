package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestSuite is a group of test cases run against a booted kernel.
type TestSuite struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Name          string             `bson:"name" json:"name" validate:"required"`
	Job           string             `bson:"job" json:"job" validate:"required"`
	Kernel        string             `bson:"kernel" json:"kernel" validate:"required"`
	Board         string             `bson:"board,omitempty" json:"board"`
	Lab           string             `bson:"lab_name" json:"lab_name" validate:"required"`
	Arch          string             `bson:"arch,omitempty" json:"arch"`
	DefconfigFull string             `bson:"defconfig_full,omitempty" json:"defconfig_full"`
	BuildID       primitive.ObjectID `bson:"build_id,omitempty" json:"build_id"`
	BootID        primitive.ObjectID `bson:"boot_id,omitempty" json:"boot_id"`
	Status        string             `bson:"status,omitempty" json:"status" validate:"omitempty,oneof=PASS FAIL SKIP UNKNOWN"`
	CreatedOn     time.Time          `bson:"created_on" json:"-"`
}

func (s *TestSuite) Identifier() primitive.ObjectID { return s.ID }
func (s *TestSuite) CollectionName() string         { return CollectionTest }
func (s *TestSuite) SetID(id primitive.ObjectID)    { s.ID = id }
func (s *TestSuite) SetCreatedOn(t time.Time)       { s.CreatedOn = t }

// ToWire returns the store representation of the test suite.
func (s *TestSuite) ToWire() bson.M {
	doc := bson.M{
		"name":     s.Name,
		"job":      s.Job,
		"kernel":   s.Kernel,
		"lab_name": s.Lab,
	}
	putString(doc, "board", s.Board)
	putString(doc, "arch", s.Arch)
	putString(doc, "defconfig_full", s.DefconfigFull)
	putString(doc, "status", s.Status)
	if !s.BuildID.IsZero() {
		doc["build_id"] = s.BuildID
	}
	if !s.BootID.IsZero() {
		doc["boot_id"] = s.BootID
	}
	return wireWithID(doc, s.ID, s.CreatedOn)
}
