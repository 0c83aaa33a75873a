package ids

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsSortableAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	var generated []string
	for i := 0; i < 100; i++ {
		id := New()
		assert.Len(t, id, 26)
		seen[id] = struct{}{}
		generated = append(generated, id)
	}
	assert.Len(t, seen, 100)
	assert.True(t, sort.StringsAreSorted(generated))
}
