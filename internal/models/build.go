package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Build is the result of compiling one defconfig of a job.
type Build struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Job           string             `bson:"job" json:"job" validate:"required"`
	JobID         primitive.ObjectID `bson:"job_id,omitempty" json:"job_id"`
	Kernel        string             `bson:"kernel" json:"kernel" validate:"required"`
	Defconfig     string             `bson:"defconfig" json:"defconfig" validate:"required"`
	DefconfigFull string             `bson:"defconfig_full,omitempty" json:"defconfig_full"`
	Arch          string             `bson:"arch" json:"arch" validate:"required"`
	GitBranch     string             `bson:"git_branch,omitempty" json:"git_branch"`
	GitCommit     string             `bson:"git_commit,omitempty" json:"git_commit"`
	Status        string             `bson:"status" json:"status" validate:"required,oneof=PASS FAIL UNKNOWN"`
	BuildType     string             `bson:"build_type,omitempty" json:"build_type"`
	Warnings      int                `bson:"warnings" json:"warnings" validate:"gte=0"`
	Errors        int                `bson:"errors" json:"errors" validate:"gte=0"`
	CreatedOn     time.Time          `bson:"created_on" json:"-"`
}

func (b *Build) Identifier() primitive.ObjectID { return b.ID }
func (b *Build) CollectionName() string         { return CollectionBuild }
func (b *Build) SetID(id primitive.ObjectID)    { b.ID = id }
func (b *Build) SetCreatedOn(t time.Time)       { b.CreatedOn = t }

// ToWire returns the store representation of the build.
func (b *Build) ToWire() bson.M {
	doc := bson.M{
		"job":       b.Job,
		"kernel":    b.Kernel,
		"defconfig": b.Defconfig,
		"arch":      b.Arch,
		"status":    b.Status,
		"warnings":  b.Warnings,
		"errors":    b.Errors,
	}
	putString(doc, "defconfig_full", b.DefconfigFull)
	putString(doc, "git_branch", b.GitBranch)
	putString(doc, "git_commit", b.GitCommit)
	putString(doc, "build_type", b.BuildType)
	if !b.JobID.IsZero() {
		doc["job_id"] = b.JobID
	}
	return wireWithID(doc, b.ID, b.CreatedOn)
}
