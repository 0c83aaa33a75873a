package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Boot is one boot attempt of a build on a board in a lab.
type Boot struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Board                 string             `bson:"board" json:"board" validate:"required"`
	BoardInstance         string             `bson:"board_instance,omitempty" json:"board_instance"`
	Job                   string             `bson:"job" json:"job" validate:"required"`
	JobID                 primitive.ObjectID `bson:"job_id,omitempty" json:"job_id"`
	Kernel                string             `bson:"kernel" json:"kernel" validate:"required"`
	Defconfig             string             `bson:"defconfig" json:"defconfig" validate:"required"`
	DefconfigFull         string             `bson:"defconfig_full,omitempty" json:"defconfig_full"`
	BuildID               primitive.ObjectID `bson:"build_id,omitempty" json:"build_id"`
	Lab                   string             `bson:"lab_name" json:"lab_name" validate:"required"`
	Arch                  string             `bson:"arch" json:"arch" validate:"required"`
	Mach                  string             `bson:"mach,omitempty" json:"mach"`
	GitBranch             string             `bson:"git_branch,omitempty" json:"git_branch"`
	GitCommit             string             `bson:"git_commit,omitempty" json:"git_commit"`
	Status                string             `bson:"status" json:"status" validate:"required,oneof=PASS FAIL OFFLINE UNKNOWN"`
	BootResultDescription string             `bson:"boot_result_description,omitempty" json:"boot_result_description"`
	BootTime              float64            `bson:"boot_time" json:"boot_time" validate:"gte=0"`
	CreatedOn             time.Time          `bson:"created_on" json:"-"`
}

func (b *Boot) Identifier() primitive.ObjectID { return b.ID }
func (b *Boot) CollectionName() string         { return CollectionBoot }
func (b *Boot) SetID(id primitive.ObjectID)    { b.ID = id }
func (b *Boot) SetCreatedOn(t time.Time)       { b.CreatedOn = t }

// ToWire returns the store representation of the boot report.
func (b *Boot) ToWire() bson.M {
	doc := bson.M{
		"board":     b.Board,
		"job":       b.Job,
		"kernel":    b.Kernel,
		"defconfig": b.Defconfig,
		"lab_name":  b.Lab,
		"arch":      b.Arch,
		"status":    b.Status,
		"boot_time": b.BootTime,
	}
	putString(doc, "board_instance", b.BoardInstance)
	putString(doc, "defconfig_full", b.DefconfigFull)
	putString(doc, "mach", b.Mach)
	putString(doc, "git_branch", b.GitBranch)
	putString(doc, "git_commit", b.GitCommit)
	putString(doc, "boot_result_description", b.BootResultDescription)
	if !b.JobID.IsZero() {
		doc["job_id"] = b.JobID
	}
	if !b.BuildID.IsZero() {
		doc["build_id"] = b.BuildID
	}
	return wireWithID(doc, b.ID, b.CreatedOn)
}
