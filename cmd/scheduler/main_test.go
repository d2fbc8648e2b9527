package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingTicker struct {
	calls []time.Time
	err   error
}

func (c *countingTicker) Tick(_ context.Context, now time.Time) (int, error) {
	c.calls = append(c.calls, now)
	return 1, c.err
}

func TestTickFuncPassesCurrentTime(t *testing.T) {
	planner := &countingTicker{}
	at := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	fn := tickFunc(context.Background(), planner, zerolog.Nop(), func() time.Time { return at })

	fn()
	planner.err = errors.New("down")
	fn()

	if len(planner.calls) != 2 || !planner.calls[0].Equal(at) {
		t.Fatalf("ожидали два срабатывания в %v, получили %v", at, planner.calls)
	}
}

func TestTickFuncSkipsAfterShutdown(t *testing.T) {
	planner := &countingTicker{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tickFunc(ctx, planner, zerolog.Nop(), time.Now)()

	if len(planner.calls) != 0 {
		t.Fatalf("после остановки срабатывания не выполняются")
	}
}
