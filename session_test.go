package w1

import (
	"testing"

	"github.com/efrecon/w1/drivers"
)

func assertInts(t testing.TB, got, want int) {
	t.Helper()

	if got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name       string
		state      sessionState
		event      streamEvent
		line       string
		wantAction sessionAction
		wantResult Temperature
		wantNext   sessionState
	}{
		{"status ok advances", awaitingStatusLine, eventLine, "7f YES", actionNone, ErrorValue, awaitingValueLine},
		{"status fail completes", awaitingStatusLine, eventLine, "7f NO", actionComplete, ErrorValue, sessionDone},
		{"eof before status completes", awaitingStatusLine, eventEndOfStream, "", actionComplete, ErrorValue, sessionDone},
		{"no data keeps waiting for status", awaitingStatusLine, eventNoData, "", actionNone, ErrorValue, awaitingStatusLine},
		{"value line completes with reading", awaitingValueLine, eventLine, "28 t=21562", actionComplete, Temperature(21.562), sessionDone},
		{"malformed value line completes with error", awaitingValueLine, eventLine, "28 garbage", actionComplete, ErrorValue, sessionDone},
		{"eof before value completes", awaitingValueLine, eventEndOfStream, "", actionComplete, ErrorValue, sessionDone},
		{"no data keeps waiting for value", awaitingValueLine, eventNoData, "", actionNone, ErrorValue, awaitingValueLine},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			action, result, next := transition(c.state, c.event, c.line)

			if action != c.wantAction {
				t.Errorf("action got: %v, want: %v", action, c.wantAction)
			}
			if next != c.wantNext {
				t.Errorf("next state got: %v, want: %v", next, c.wantNext)
			}
			if action == actionComplete {
				assertTemperatures(t, result, c.wantResult)
			}
		})
	}
}

func TestTransitionNeverRegresses(t *testing.T) {
	states := []sessionState{awaitingStatusLine, awaitingValueLine, sessionDone}
	events := []streamEvent{eventNoData, eventLine, eventEndOfStream}

	for _, state := range states {
		for _, event := range events {
			_, _, next := transition(state, event, "7f YES")
			if next < state {
				t.Errorf("state regressed from %v to %v on event %v", state, next, event)
			}
		}
	}
}

func runSession(t testing.TB, source drivers.LineSource) (Temperature, int) {
	t.Helper()

	result := ErrorValue
	calls := 0
	session := newReadSession("28-000005e2fdc3", source, func(value Temperature) {
		result = value
		calls++
	})

	for !session.pump() {
	}

	return result, calls
}

func TestSessionSuccess(t *testing.T) {
	source := &drivers.MockLineSource{Lines: []string{"7f YES", "28 t=21562"}}

	result, calls := runSession(t, source)

	assertTemperatures(t, result, Temperature(21.562))
	assertInts(t, calls, 1)
	assertInts(t, source.CloseCount, 1)
}

func TestSessionCrcFailure(t *testing.T) {
	source := &drivers.MockLineSource{Lines: []string{"7f NO", "28 t=21562"}}

	result, calls := runSession(t, source)

	assertTemperatures(t, result, ErrorValue)
	assertInts(t, calls, 1)
	assertInts(t, source.CloseCount, 1)
}

func TestSessionEndOfStreamBeforeStatus(t *testing.T) {
	source := &drivers.MockLineSource{}

	result, calls := runSession(t, source)

	assertTemperatures(t, result, ErrorValue)
	assertInts(t, calls, 1)
	assertInts(t, source.CloseCount, 1)
}

func TestSessionEndOfStreamBeforeValue(t *testing.T) {
	source := &drivers.MockLineSource{Lines: []string{"7f YES"}}

	result, calls := runSession(t, source)

	assertTemperatures(t, result, ErrorValue)
	assertInts(t, calls, 1)
	assertInts(t, source.CloseCount, 1)
}

func TestSessionWaitsForStalledSource(t *testing.T) {
	source := &drivers.MockLineSource{
		Lines: []string{"7f YES", "28 t=21562"},
		Stall: 3,
	}

	session := newReadSession("28-000005e2fdc3", source, func(Temperature) {})

	pumps := 0
	for !session.pump() {
		pumps++
	}

	if pumps == 0 {
		t.Error("expected at least one unproductive pump on a stalled source")
	}
	assertInts(t, source.CloseCount, 1)
}

func TestSessionAbort(t *testing.T) {
	source := &drivers.MockLineSource{
		Lines: []string{"7f YES", "28 t=21562"},
		Stall: 1000,
	}

	result := Temperature(0)
	calls := 0
	session := newReadSession("28-000005e2fdc3", source, func(value Temperature) {
		result = value
		calls++
	})

	if session.pump() {
		t.Fatal("expected stalled session to stay open")
	}

	session.abort()
	assertTemperatures(t, result, ErrorValue)
	assertInts(t, calls, 1)
	assertInts(t, source.CloseCount, 1)

	// A second abort must not close or call back again.
	session.abort()
	assertInts(t, calls, 1)
	assertInts(t, source.CloseCount, 1)
}
