package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitDeliversInOrder(t *testing.T) {
	e := NewEmitter()
	var got []string
	e.Subscribe(EventRoundOpened, func(Event) { got = append(got, "typed") })
	e.SubscribeAll(func(ev Event) { got = append(got, "all:"+string(ev.Type)) })

	e.Emit(Event{Type: EventRoundOpened})
	e.Emit(Event{Type: EventRoundClosed})
	assert.Equal(t, []string{"typed", "all:round_opened", "all:round_closed"}, got)
}

func TestPanickingSubscriberIsSkipped(t *testing.T) {
	e := NewEmitter()
	delivered := 0
	e.Subscribe(EventPrizePaid, func(Event) { panic("boom") })
	e.Subscribe(EventPrizePaid, func(Event) { delivered++ })

	assert.NotPanics(t, func() { e.Emit(Event{Type: EventPrizePaid}) })
	assert.Equal(t, 1, delivered)
}
