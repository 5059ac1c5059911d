package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	j.events = append(j.events, e)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

func component(j *journal, name string, startErr error) Component {
	return Component{
		Name: name,
		Start: func(context.Context) error {
			j.add("start " + name)
			return startErr
		},
		Stop: func(context.Context) error {
			j.add("stop " + name)
			return nil
		},
	}
}

func TestRunStartsInOrderAndStopsInReverse(t *testing.T) {
	j := &journal{}
	closers := []Closer{{Name: "db", Close: func() error { j.add("close db"); return nil }}}
	app := New(nil, nil, nil, []Component{component(j, "a", nil), component(j, "b", nil)}, closers)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	require.Eventually(t, func() bool { return len(j.list()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a", "close db"}, j.list())
}

func TestRunUnwindsOnStartFailure(t *testing.T) {
	j := &journal{}
	app := New(nil, nil, nil, []Component{
		component(j, "a", nil),
		component(j, "b", errors.New("no broker")),
		component(j, "c", nil),
	}, nil)

	err := app.RunContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start b")
	assert.Equal(t, []string{"start a", "start b", "stop a"}, j.list())
}

func TestShutdownJoinsErrors(t *testing.T) {
	app := New(nil, nil, nil, []Component{{
		Name: "pipe",
		Stop: func(context.Context) error { return errors.New("flush timeout") },
	}}, []Closer{{Name: "kafka", Close: func() error { return errors.New("writer closed") }}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := app.RunContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop pipe")
	assert.Contains(t, err.Error(), "close kafka")
}
