package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Get and Put", func(t *testing.T) {
		timer1 := GetTimer(10 * time.Millisecond)
		assert.NotNil(timer1)

		PutTimer(timer1)

		timer2 := GetTimer(20 * time.Millisecond)
		assert.NotNil(timer2)

		<-timer2.C
		PutTimer(timer2)
	})

	t.Run("Put Active Timer", func(t *testing.T) {
		timer1 := GetTimer(time.Second)
		PutTimer(timer1)

		timer2 := GetTimer(20 * time.Millisecond)
		begin := time.Now()
		<-timer2.C
		assert.Less(time.Since(begin), 500*time.Millisecond)
		PutTimer(timer2)
	})
}

func TestSleep(t *testing.T) {
	assert := assert.New(t)

	assert.True(Sleep(context.Background(), 5*time.Millisecond))
	assert.True(Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(Sleep(ctx, time.Second))
	assert.False(Sleep(ctx, 0))

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	begin := time.Now()
	assert.False(Sleep(ctx, 5*time.Second))
	assert.Less(time.Since(begin), time.Second)
}
