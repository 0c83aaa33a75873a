package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/ci-results-api/internal/models"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

// Reserved query keys. They shape the query and are never filters.
const (
	KeyField     = "field"
	KeyNotField  = "nfield"
	KeySort      = "sort"
	KeySortOrder = "sort_order"
	KeySkip      = "skip"
	KeyLimit     = "limit"
	KeyDateRange = "date_range"
	KeyCreatedOn = "created_on"
	KeyToken     = "token"
)

const createdOnLayout = "2006-01-02"

var reservedKeys = map[string]struct{}{
	KeyField: {}, KeyNotField: {}, KeySort: {}, KeySortOrder: {}, KeySkip: {},
	KeyLimit: {}, KeyDateRange: {}, KeyCreatedOn: {}, KeyToken: {},
}

// IsReserved reports whether key controls the query rather than filtering it.
func IsReserved(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// Query is a structured document store query.
type Query struct {
	Collection string
	Filter     bson.M
	Projection bson.M
	Sort       bson.D
	Skip       int64
	Limit      int64
}

// Translator turns HTTP query parameters into store queries.
type Translator struct {
	now func() time.Time
}

// NewTranslator builds a translator. A nil clock uses time.Now.
func NewTranslator(now func() time.Time) *Translator {
	if now == nil {
		now = time.Now
	}
	return &Translator{now: now}
}

// UnknownKeys returns the sorted filter keys that res does not accept.
func UnknownKeys(res models.Resource, params url.Values) []string {
	var unknown []string
	for key := range params {
		if IsReserved(key) || res.Allows(key) {
			continue
		}
		unknown = append(unknown, key)
	}
	sort.Strings(unknown)
	return unknown
}

// Translate validates params against the resource allow-list and builds the
// query. Every validation failure is a 400 and happens before store access.
func (t *Translator) Translate(res models.Resource, params url.Values) (*Query, error) {
	if unknown := UnknownKeys(res, params); len(unknown) > 0 {
		return nil, appErrors.Validationf("Invalid query key: %s", unknown[0])
	}

	filter, err := t.Filter(res, params)
	if err != nil {
		return nil, err
	}

	q := &Query{Collection: res.Collection, Filter: filter}

	if q.Projection, err = projection(params); err != nil {
		return nil, err
	}
	if q.Sort, err = sortSpec(res, params); err != nil {
		return nil, err
	}
	if q.Skip, err = nonNegative(params, KeySkip); err != nil {
		return nil, err
	}
	if q.Limit, err = nonNegative(params, KeyLimit); err != nil {
		return nil, err
	}
	return q, nil
}

// Filter builds only the filter part of the query: equality or $in
// conditions plus the created_on date range.
func (t *Translator) Filter(res models.Resource, params url.Values) (bson.M, error) {
	filter := bson.M{}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if IsReserved(key) {
			continue
		}
		if !res.Allows(key) {
			return nil, appErrors.Validationf("Invalid query key: %s", key)
		}
		values := splitValues(params[key])
		if len(values) == 0 {
			continue
		}
		converted := make([]interface{}, 0, len(values))
		for _, v := range values {
			cv, err := convertValue(res, key, v)
			if err != nil {
				return nil, err
			}
			converted = append(converted, cv)
		}
		if len(converted) == 1 {
			filter[key] = converted[0]
		} else {
			filter[key] = bson.M{"$in": converted}
		}
	}

	dateFilter, err := t.dateRange(params)
	if err != nil {
		return nil, err
	}
	if dateFilter != nil {
		filter[KeyCreatedOn] = dateFilter
	}
	return filter, nil
}

func (t *Translator) dateRange(params url.Values) (bson.M, error) {
	rawRange := strings.TrimSpace(params.Get(KeyDateRange))
	rawDay := strings.TrimSpace(params.Get(KeyCreatedOn))
	if rawRange == "" && rawDay == "" {
		return nil, nil
	}

	if rawDay == "" {
		start, err := FloorDateString(t.now(), rawRange)
		if err != nil {
			return nil, appErrors.Validationf("Invalid date_range value: %s", rawRange)
		}
		return bson.M{"$gte": start}, nil
	}

	ref, err := time.Parse(createdOnLayout, rawDay)
	if err != nil {
		return nil, appErrors.Validationf("Invalid created_on value: %s", rawDay)
	}
	start := Midnight(ref)
	if rawRange != "" {
		if start, err = FloorDateString(ref, rawRange); err != nil {
			return nil, appErrors.Validationf("Invalid date_range value: %s", rawRange)
		}
	}
	return bson.M{"$gte": start, "$lt": Midnight(ref).AddDate(0, 0, 1)}, nil
}

func splitValues(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func convertValue(res models.Resource, key, value string) (interface{}, error) {
	if !res.IsObjectIDKey(key) {
		return value, nil
	}
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return nil, appErrors.Validationf("Invalid identifier for %s: %s", key, value)
	}
	return id, nil
}

// projection builds an inclusion or exclusion projection. With an inclusion
// list the identifier is left out unless it is listed.
func projection(params url.Values) (bson.M, error) {
	include := splitValues(params[KeyField])
	exclude := splitValues(params[KeyNotField])
	if len(include) > 0 && len(exclude) > 0 {
		return nil, appErrors.Validationf("Parameters %s and %s cannot be used together", KeyField, KeyNotField)
	}

	fields, flag := include, 1
	if len(exclude) > 0 {
		fields, flag = exclude, 0
	}
	if len(fields) == 0 {
		return nil, nil
	}

	proj := bson.M{}
	for _, f := range fields {
		if strings.HasPrefix(f, "$") {
			return nil, appErrors.Validationf("Invalid projection field: %s", f)
		}
		proj[f] = flag
	}
	if flag == 1 {
		if _, ok := proj["_id"]; !ok {
			proj["_id"] = 0
		}
	}
	return proj, nil
}

func sortSpec(res models.Resource, params url.Values) (bson.D, error) {
	keys := splitValues(params[KeySort])
	if len(keys) == 0 {
		return nil, nil
	}

	order := -1
	switch raw := strings.ToLower(strings.TrimSpace(params.Get(KeySortOrder))); raw {
	case "", "-1", "desc":
	case "1", "asc":
		order = 1
	default:
		return nil, appErrors.Validationf("Invalid sort_order value: %s", raw)
	}

	spec := make(bson.D, 0, len(keys))
	for _, k := range keys {
		if k != KeyCreatedOn && !res.Allows(k) {
			return nil, appErrors.Validationf("Invalid sort key: %s", k)
		}
		spec = append(spec, bson.E{Key: k, Value: order})
	}
	return spec, nil
}

func nonNegative(params url.Values, key string) (int64, error) {
	raw := strings.TrimSpace(params.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, appErrors.Validationf("Invalid %s value: %s", key, raw)
	}
	return n, nil
}
