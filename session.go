package w1

import (
	"sync"

	"github.com/efrecon/w1/drivers"
)

// sessionState tracks how far an in-flight read got through the two-line
// driver protocol. It only ever advances.
type sessionState int

const (
	awaitingStatusLine sessionState = iota
	awaitingValueLine
	sessionDone
)

// streamEvent is what the line source reported on the last poll.
type streamEvent int

const (
	eventNoData streamEvent = iota
	eventLine
	eventEndOfStream
)

type sessionAction int

const (
	actionNone sessionAction = iota
	actionComplete
)

// transition is the pure state machine core: given the current state and
// a stream event it yields the action to take, the result to deliver when
// the action completes the session, and the next state.
func transition(state sessionState, event streamEvent, line string) (sessionAction, Temperature, sessionState) {
	switch state {
	case awaitingStatusLine:
		switch event {
		case eventLine:
			if statusOK(line) {
				return actionNone, ErrorValue, awaitingValueLine
			}
			return actionComplete, ErrorValue, sessionDone
		case eventEndOfStream:
			return actionComplete, ErrorValue, sessionDone
		}
	case awaitingValueLine:
		switch event {
		case eventLine:
			return actionComplete, parseValueLine(line), sessionDone
		case eventEndOfStream:
			return actionComplete, ErrorValue, sessionDone
		}
	}

	return actionNone, ErrorValue, state
}

// readSession drives one LineSource through a single read cycle. The
// source is closed exactly once, on whichever path terminates the
// session, and the callback fires exactly once with the result.
type readSession struct {
	device   DeviceID
	source   drivers.LineSource
	callback func(Temperature)

	mu    sync.Mutex
	state sessionState
}

func newReadSession(device DeviceID, source drivers.LineSource, callback func(Temperature)) *readSession {
	return &readSession{
		device:   device,
		source:   source,
		callback: callback,
	}
}

// pump consumes source events until the session terminates or the source
// has no complete line buffered. It returns true once the session is
// done; false means the caller should retry on the next readability
// signal.
func (rs *readSession) pump() bool {
	rs.mu.Lock()

	for rs.state != sessionDone {
		line, ok, err := rs.source.ReadLine()

		var event streamEvent
		switch {
		case err != nil:
			// EOF and read errors terminate the cycle the same way.
			event = eventEndOfStream
		case !ok:
			rs.mu.Unlock()
			return false
		default:
			event = eventLine
		}

		action, result, next := transition(rs.state, event, line)
		rs.state = next

		if action == actionComplete {
			rs.finish(result)
			return true
		}
	}

	rs.mu.Unlock()
	return true
}

// abort terminates a session that is still waiting for input, delivering
// the error value. A session that already completed is left alone.
func (rs *readSession) abort() {
	rs.mu.Lock()
	if rs.state == sessionDone {
		rs.mu.Unlock()
		return
	}

	rs.state = sessionDone
	rs.finish(ErrorValue)
}

// finish closes the source and fires the callback outside the lock.
// Callers must hold rs.mu and have set state to sessionDone, which is
// what guarantees the single close and single callback.
func (rs *readSession) finish(result Temperature) {
	rs.source.Close()
	callback := rs.callback
	rs.mu.Unlock()

	callback(result)
}
