package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names in the document store.
const (
	CollectionJob    = "job"
	CollectionBuild  = "build"
	CollectionBoot   = "boot"
	CollectionTest   = "test_suite"
	CollectionToken  = "api-token"
	CollectionBisect = "bisect"
)

// Result statuses shared by jobs, builds, boots and tests.
const (
	StatusPass    = "PASS"
	StatusFail    = "FAIL"
	StatusOffline = "OFFLINE"
	StatusBuild   = "BUILD"
	StatusUnknown = "UNKNOWN"
)

// Job groups every build of one kernel from one tree.
type Job struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Job       string             `bson:"job" json:"job" validate:"required"`
	Kernel    string             `bson:"kernel" json:"kernel" validate:"required"`
	GitBranch string             `bson:"git_branch,omitempty" json:"git_branch"`
	GitCommit string             `bson:"git_commit,omitempty" json:"git_commit"`
	GitURL    string             `bson:"git_url,omitempty" json:"git_url" validate:"omitempty,url"`
	Status    string             `bson:"status,omitempty" json:"status" validate:"omitempty,oneof=PASS FAIL BUILD UNKNOWN"`
	CreatedOn time.Time          `bson:"created_on" json:"-"`
}

func (j *Job) Identifier() primitive.ObjectID { return j.ID }
func (j *Job) CollectionName() string         { return CollectionJob }
func (j *Job) SetID(id primitive.ObjectID)    { j.ID = id }
func (j *Job) SetCreatedOn(t time.Time)       { j.CreatedOn = t }

// ToWire returns the store representation of the job.
func (j *Job) ToWire() bson.M {
	doc := bson.M{
		"job":    j.Job,
		"kernel": j.Kernel,
	}
	putString(doc, "git_branch", j.GitBranch)
	putString(doc, "git_commit", j.GitCommit)
	putString(doc, "git_url", j.GitURL)
	putString(doc, "status", j.Status)
	return wireWithID(doc, j.ID, j.CreatedOn)
}
