package stock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plazza/internal/pizza"
)

func TestNewStockInitializesAllIngredientsToFive(t *testing.T) {
	s := New()
	snap := s.Snapshot()
	require.Len(t, snap, len(pizza.AllIngredients))
	for _, ing := range pizza.AllIngredients {
		assert.Equal(t, uint32(5), snap[ing])
	}
}

func TestConsumeSucceedsWhenAvailable(t *testing.T) {
	s := New()
	ok := s.Consume(map[pizza.Ingredient]uint32{pizza.Dough: 2, pizza.Tomato: 1})
	require.True(t, ok)
	snap := s.Snapshot()
	assert.Equal(t, uint32(3), snap[pizza.Dough])
	assert.Equal(t, uint32(4), snap[pizza.Tomato])
}

func TestConsumeFailsWhenInsufficientAndChangesNothing(t *testing.T) {
	s := New()
	ok := s.Consume(map[pizza.Ingredient]uint32{pizza.Dough: 100})
	assert.False(t, ok)
	snap := s.Snapshot()
	assert.Equal(t, uint32(5), snap[pizza.Dough])
}

func TestConsumeIfRollsBackWhenPredicateFails(t *testing.T) {
	s := New()
	ok := s.ConsumeIf(map[pizza.Ingredient]uint32{pizza.Dough: 2}, func() bool { return false })
	assert.False(t, ok)
	snap := s.Snapshot()
	assert.Equal(t, uint32(5), snap[pizza.Dough], "ingredients must be restored when onConsume rejects")
}

func TestConsumeIfCommitsWhenPredicateSucceeds(t *testing.T) {
	s := New()
	ok := s.ConsumeIf(map[pizza.Ingredient]uint32{pizza.Dough: 2}, func() bool { return true })
	assert.True(t, ok)
	snap := s.Snapshot()
	assert.Equal(t, uint32(3), snap[pizza.Dough])
}

func TestRestockAddsToEveryIngredient(t *testing.T) {
	s := New()
	require.True(t, s.Consume(map[pizza.Ingredient]uint32{pizza.Dough: 5}))
	s.Restock(2)
	snap := s.Snapshot()
	assert.Equal(t, uint32(2), snap[pizza.Dough])
	assert.Equal(t, uint32(7), snap[pizza.Tomato])
}

func TestRunRestockLoopStopsOnSignal(t *testing.T) {
	s := New()
	require.True(t, s.Consume(map[pizza.Ingredient]uint32{pizza.Dough: 5}))

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		s.RunRestockLoop(10*time.Millisecond, stop)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("restock loop did not stop")
	}

	snap := s.Snapshot()
	assert.Greater(t, snap[pizza.Dough], uint32(0))
}
