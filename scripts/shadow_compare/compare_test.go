package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeDiffMatchesAcrossDateAndIDNotations(t *testing.T) {
	legacy := []byte(`{"code": 200, "count": 1, "limit": 10, "result": [
		{"_id": {"$oid": "5390c2c6b1c6b2b6b1d0e9a1"}, "created_on": {"$date": 1388577600000}, "warnings": 0}
	], "message": null}`)
	current := []byte(`{"code":200,"count":1,"limit":10,"result":[
		{"warnings":0.0,"created_on":{"$date":"2014-01-01T12:00:00Z"},"_id":{"$oid":"5390c2c6b1c6b2b6b1d0e9a1"}}
	]}`)

	diff, err := envelopeDiff(current, legacy, nil)
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestEnvelopeDiffReportsChangedFields(t *testing.T) {
	legacy := []byte(`{"code": 200, "count": 2, "result": [{"board": "panda"}]}`)
	current := []byte(`{"code": 200, "count": 3, "result": [{"board": "beagle"}]}`)

	diff, err := envelopeDiff(current, legacy, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"count", "result"}, diff)

	diff, err = envelopeDiff(current, legacy, []string{"result"})
	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, diff)
}

func TestEnvelopeDiffIgnoresMessageButNotMissingFields(t *testing.T) {
	legacy := []byte(`{"code": 400, "message": "Invalid query"}`)
	current := []byte(`{"code": 400, "message": "Bad request", "result": []}`)

	diff, err := envelopeDiff(current, legacy, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"result"}, diff)
}

func TestEnvelopeDiffRejectsNonJSONBody(t *testing.T) {
	_, err := envelopeDiff([]byte("<html>502</html>"), []byte(`{"code": 200}`), nil)
	assert.Error(t, err)
}
