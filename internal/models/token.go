package models

import (
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Capabilities holds the independent permission bits of a token. Each bit is
// stored as 0 or 1.
type Capabilities struct {
	Read         int `bson:"read" json:"read" db:"can_read" validate:"oneof=0 1"`
	Create       int `bson:"create" json:"create" db:"can_create" validate:"oneof=0 1"`
	Delete       int `bson:"delete" json:"delete" db:"can_delete" validate:"oneof=0 1"`
	Update       int `bson:"update" json:"update" db:"can_update" validate:"oneof=0 1"`
	Admin        int `bson:"admin" json:"admin" db:"is_admin" validate:"oneof=0 1"`
	Superuser    int `bson:"superuser" json:"superuser" db:"is_superuser" validate:"oneof=0 1"`
	CreateToken  int `bson:"create_token" json:"create_token" db:"can_create_token" validate:"oneof=0 1"`
	IPRestricted int `bson:"ip_restricted" json:"ip_restricted" db:"is_ip_restricted" validate:"oneof=0 1"`
}

// Token is an opaque capability credential.
type Token struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Token        string             `bson:"token" json:"-"`
	Email        string             `bson:"email,omitempty" json:"email" validate:"omitempty,email"`
	Username     string             `bson:"username,omitempty" json:"username"`
	CreatedOn    time.Time          `bson:"created_on" json:"-"`
	ExpiresOn    *time.Time         `bson:"expires_on,omitempty" json:"expires_on"`
	Expired      bool               `bson:"expired" json:"expired"`
	Capabilities Capabilities       `bson:"properties" json:"properties"`
	IPAddresses  []string           `bson:"ip_address,omitempty" json:"ip_address" validate:"omitempty,dive,ip"`
}

func (t *Token) Identifier() primitive.ObjectID { return t.ID }
func (t *Token) CollectionName() string         { return CollectionToken }
func (t *Token) SetID(id primitive.ObjectID)    { t.ID = id }
func (t *Token) SetCreatedOn(ts time.Time)      { t.CreatedOn = ts }

// ToWire returns the store representation of the token.
func (t *Token) ToWire() bson.M {
	doc := bson.M{
		"token":    t.Token,
		"email":    t.Email,
		"username": t.Username,
		"expired":  t.Expired,
		"properties": bson.M{
			"read":          t.Capabilities.Read,
			"create":        t.Capabilities.Create,
			"delete":        t.Capabilities.Delete,
			"update":        t.Capabilities.Update,
			"admin":         t.Capabilities.Admin,
			"superuser":     t.Capabilities.Superuser,
			"create_token":  t.Capabilities.CreateToken,
			"ip_restricted": t.Capabilities.IPRestricted,
		},
	}
	if t.ExpiresOn != nil {
		doc["expires_on"] = t.ExpiresOn.UTC()
	}
	if len(t.IPAddresses) > 0 {
		doc["ip_address"] = t.IPAddresses
	}
	return wireWithID(doc, t.ID, t.CreatedOn)
}

// Normalize enforces the implications between bits: admin grants every action
// bit and token creation, superuser grants every action bit only.
func (t *Token) Normalize() {
	c := &t.Capabilities
	if c.Admin == 1 {
		c.Read, c.Create, c.Delete, c.Update, c.CreateToken = 1, 1, 1, 1, 1
		return
	}
	if c.Superuser == 1 {
		c.Read, c.Create, c.Delete, c.Update = 1, 1, 1, 1
	}
}

// IsAdmin reports the admin bit.
func (t *Token) IsAdmin() bool { return t.Capabilities.Admin == 1 }

// IsSuperuser reports the superuser bit.
func (t *Token) IsSuperuser() bool { return t.Capabilities.Superuser == 1 }

// AllowsMethod reports whether the action bit matching the HTTP method is set.
func (t *Token) AllowsMethod(method string) bool {
	c := t.Capabilities
	switch method {
	case http.MethodGet, http.MethodHead:
		return c.Read == 1
	case http.MethodPost:
		return c.Create == 1
	case http.MethodPut, http.MethodPatch:
		return c.Update == 1
	case http.MethodDelete:
		return c.Delete == 1
	default:
		return false
	}
}

// IsExpired reports whether the token was flagged expired or is past its
// expiry date.
func (t *Token) IsExpired(now time.Time) bool {
	if t.Expired {
		return true
	}
	return t.ExpiresOn != nil && now.After(*t.ExpiresOn)
}

// AllowsIP reports whether requests from ip may use an IP-restricted token.
func (t *Token) AllowsIP(ip string) bool {
	if t.Capabilities.IPRestricted != 1 {
		return true
	}
	for _, allowed := range t.IPAddresses {
		if allowed == ip {
			return true
		}
	}
	return false
}

// TokenFilter narrows token listings. Empty fields match everything.
type TokenFilter struct {
	ID       primitive.ObjectID
	Email    string
	Username string
}
