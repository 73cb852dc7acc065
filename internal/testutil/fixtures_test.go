package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynq/internal/value"
)

func TestEmployees(t *testing.T) {
	rows := Employees(t)
	require.Len(t, rows, 5)

	assert.Equal(t, []string{"John", "Mark", "Johanna", "Zed", "Alice"}, Strings(t, rows, "Name"))
	for _, row := range rows {
		assert.Same(t, Employee, row.Type())
	}

	ages := Column(t, rows, "Age")
	assert.Equal(t, value.Null{}, ages[2])
	assert.Equal(t, value.Int(30), ages[0])
}

func TestFixedRunIDGenerator(t *testing.T) {
	gen := NewFixedRunIDGenerator("run-1")

	var wg sync.WaitGroup
	ids := make([]string, 50)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = gen.Generate()
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, "run-1", id)
	}
	assert.Equal(t, "test-run-default", NewFixedRunIDGenerator("").Generate())
}
