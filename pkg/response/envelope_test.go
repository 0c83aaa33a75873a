package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

func TestEnvelopeMarshalCount(t *testing.T) {
	env := OK([]bson.M{}, 0)
	require.NoError(t, env.SetLimit(10))

	raw, err := env.MarshalWire()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 200, decoded["code"])
	assert.EqualValues(t, 0, decoded["count"])
	assert.EqualValues(t, 10, decoded["limit"])
	assert.Equal(t, []interface{}{}, decoded["result"])
	_, hasMessage := decoded["message"]
	assert.False(t, hasMessage)
}

func TestEnvelopeMarshalKeepsStoreTypes(t *testing.T) {
	id := primitive.NewObjectID()
	created := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)
	env := OK([]bson.M{{"_id": id, "created_on": primitive.NewDateTimeFromTime(created)}}, 1)

	raw, err := env.MarshalWire()
	require.NoError(t, err)

	var decoded struct {
		Result []map[string]map[string]interface{} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Result, 1)
	assert.Equal(t, id.Hex(), decoded.Result[0]["_id"]["$oid"])
	assert.Equal(t, "2014-01-01T00:00:00Z", decoded.Result[0]["created_on"]["$date"])
}

func TestEnvelopeNilResultIsEmptyArray(t *testing.T) {
	var docs []bson.M
	env := OK(docs, 0)
	raw, err := env.MarshalWire()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"result":[]`)
}

func TestEnvelopeRejectsInvalidStatus(t *testing.T) {
	env := New(http.StatusOK)
	err := env.SetStatus(42)
	require.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, http.StatusOK, env.Status())

	bad := New(1000)
	assert.Equal(t, http.StatusInternalServerError, bad.Status())
}

func TestEnvelopeImmutableAfterWrite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	env := WithMessage(http.StatusCreated, "created")
	require.NoError(t, env.SetHeader("Location", "/job/1"))
	require.NoError(t, env.Write(c))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/job/1", w.Header().Get("Location"))
	assert.Equal(t, ContentTypeJSON, w.Header().Get("Content-Type"))

	assert.ErrorIs(t, env.Write(c), ErrEnvelopeWritten)
	assert.ErrorIs(t, env.SetStatus(http.StatusOK), ErrEnvelopeWritten)
	assert.ErrorIs(t, env.SetMessage("late"), ErrEnvelopeWritten)
	assert.ErrorIs(t, env.SetResult(nil), ErrEnvelopeWritten)
	assert.ErrorIs(t, env.SetHeader("X", "y"), ErrEnvelopeWritten)
	assert.True(t, env.Written())
}

func TestFromError(t *testing.T) {
	env := FromError(appErrors.ErrNoToken)
	assert.Equal(t, http.StatusForbidden, env.Status())
	assert.Equal(t, "no valid token", env.Message())

	env = FromError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, env.Status())
}
