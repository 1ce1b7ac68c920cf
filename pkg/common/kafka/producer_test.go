package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEventStampsIDAndTime(t *testing.T) {
	a := NewEvent("person.created", "demographics-registry", map[string]interface{}{"person_id": 1})
	b := NewEvent("person.created", "demographics-registry", nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "person.created", a.Type)
	assert.Equal(t, "demographics-registry", a.Source)
	assert.False(t, a.Timestamp.IsZero())
	assert.Equal(t, 1, a.Data["person_id"])
}
