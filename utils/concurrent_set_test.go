package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConcurrentSet(t *testing.T) {
	s := NewConcurrentSet[string]()
	assert.True(t, s.IsEmpty())

	assert.False(t, s.Add("PLAIN"))
	assert.True(t, s.Add("PLAIN"))
	assert.True(t, s.Contains("PLAIN"))
	assert.Equal(t, 1, s.Size())

	assert.True(t, s.Remove("PLAIN"))
	assert.False(t, s.Remove("PLAIN"))
	assert.True(t, s.IsEmpty())
}

func TestConcurrentSetParallelAdds(t *testing.T) {
	s := NewConcurrentSet[int]()
	wg := sync.WaitGroup{}
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(i % 8)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, s.Size())
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, s.Keys())

	s.Clear()
	assert.True(t, s.IsEmpty())
}
