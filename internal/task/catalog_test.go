package task

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedFunc(name string) Func {
	return Func{TaskName: name, Body: func(ctx *Context) Result { return Success("") }}
}

func TestNewCatalog_RejectsEmpty(t *testing.T) {
	_, err := NewCatalog(nil)
	assert.Error(t, err)
}

func TestNewCatalog_RejectsZeroWeight(t *testing.T) {
	_, err := NewCatalog([]Entry{{Task: namedFunc("t"), Weight: 0}})
	assert.Error(t, err)
}

func TestCatalog_SampleRespectsWeighting(t *testing.T) {
	cat, err := NewCatalog([]Entry{
		{Task: namedFunc("heavy"), Weight: 9},
		{Task: namedFunc("light"), Weight: 1},
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		counts[cat.Sample(rng).Name()]++
	}

	assert.Greater(t, counts["heavy"], counts["light"]*3, "a 9:1 weighted catalog should favor the heavy task strongly")
}

func TestCatalog_Names(t *testing.T) {
	cat, err := NewCatalog([]Entry{
		{Task: namedFunc("a"), Weight: 1},
		{Task: namedFunc("b"), Weight: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cat.Names())
}
