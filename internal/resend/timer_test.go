package resend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendDisablesForCountdown(t *testing.T) {
	calls := 0
	timer := New(0, func(context.Context) error {
		calls++
		return nil
	})
	assert.Equal(t, State{Enabled: true}, timer.State())

	require.NoError(t, timer.HandleResend(context.Background()))
	assert.Equal(t, State{Countdown: DefaultSeconds}, timer.State())
	assert.ErrorIs(t, timer.HandleResend(context.Background()), ErrCoolingDown)
	assert.Equal(t, 1, calls)

	for i := 0; i < DefaultSeconds-1; i++ {
		timer.Tick()
	}
	assert.Equal(t, State{Countdown: 1}, timer.State())
	timer.Tick()
	assert.Equal(t, State{Enabled: true}, timer.State())

	timer.Tick()
	assert.Equal(t, State{Enabled: true}, timer.State())
}

func TestFailedActionReArmsImmediately(t *testing.T) {
	boom := errors.New("boom")
	timer := New(5, func(context.Context) error { return boom })

	err := timer.HandleResend(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, State{Enabled: true}, timer.State())
}

func TestStateVisibleWhileActionRuns(t *testing.T) {
	var during State
	var timer *Timer
	timer = New(3, func(context.Context) error {
		during = timer.State()
		return nil
	})
	require.NoError(t, timer.HandleResend(context.Background()))
	assert.Equal(t, State{Countdown: 3}, during)
}

func TestOnChangeAndRun(t *testing.T) {
	changes := make(chan State, 16)
	timer := New(2, nil,
		WithInterval(time.Millisecond),
		WithOnChange(func(s State) { changes <- s }),
	)
	require.NoError(t, timer.HandleResend(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go timer.Run(ctx)

	var seen []State
	for len(seen) < 3 {
		select {
		case s := <-changes:
			seen = append(seen, s)
		case <-ctx.Done():
			t.Fatalf("timer did not finish, saw %v", seen)
		}
	}
	assert.Equal(t, []State{{Countdown: 2}, {Countdown: 1}, {Enabled: true}}, seen)
}
