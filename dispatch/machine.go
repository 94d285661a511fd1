package dispatch

// State is the delivery state of a Queue.
type State int

const (
	Idle State = iota
	Dispatching
	Cooldown
)

func (s State) String() string {
	switch s {
	case Dispatching:
		return "dispatching"
	case Cooldown:
		return "cooldown"
	default:
		return "idle"
	}
}

type event int

const (
	// eventTry asks for a delivery. ready reports whether the queue holds a
	// message, a consumer is registered and the queue is not paused.
	eventTry event = iota
	// eventDelivered fires when the consumer callback returns.
	eventDelivered
	// eventElapsed fires when the cooldown timer expires, or when the
	// cooldown is skipped.
	eventElapsed
	// eventReset comes from Clear and from DrainNow skipping a cooldown.
	eventReset
)

type effect int

const (
	effectNone effect = iota
	effectDeliver
	effectArmCooldown
	effectRetry
)

// transition is the whole queue state machine:
//
//	Idle        --try(ready)--> Dispatching  deliver head
//	Dispatching --delivered-->  Cooldown     arm timer
//	Cooldown    --elapsed-->    Idle         try again
//	Cooldown    --reset-->      Idle
//
// Every other pair leaves the state unchanged with no effect. Dispatching
// ignores reset so a second delivery can never start while one is in flight.
func transition(s State, ev event, ready bool) (State, effect) {
	switch {
	case s == Idle && ev == eventTry && ready:
		return Dispatching, effectDeliver
	case s == Dispatching && ev == eventDelivered:
		return Cooldown, effectArmCooldown
	case s == Cooldown && ev == eventElapsed:
		return Idle, effectRetry
	case s == Cooldown && ev == eventReset:
		return Idle, effectNone
	}
	return s, effectNone
}
