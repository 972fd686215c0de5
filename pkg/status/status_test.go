package status

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatticeOrdering(t *testing.T) {
	assert.True(t, Leq(Waiting, Running))
	assert.True(t, IsGT(Succeeded, Failed))
	assert.False(t, IsGT(Waiting, Queued))
	assert.True(t, Geq(Succeeded, Succeeded))
}

func TestClassificationSets(t *testing.T) {
	assert.True(t, IsActive(Submitted))
	assert.True(t, IsActive(Running))
	assert.False(t, IsActive(Waiting))

	assert.True(t, IsFinal(Expired))
	assert.True(t, IsFinal(SubmitFailed))
	assert.False(t, IsFinal(Retrying))

	assert.True(t, IsTriggerable(Held))
	assert.False(t, IsTriggerable(Running))
}

func TestUnknownStatusIndex(t *testing.T) {
	assert.Equal(t, -1, Index(Status("bogus")))
	assert.False(t, Valid(Status("bogus")))
}

func TestJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Running)
	assert.NoError(t, err)
	assert.Equal(t, `"running"`, string(data))

	var s Status
	assert.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, Running, s)
}
