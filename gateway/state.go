package gateway

// state is a step of the request state machine:
//
//	Idle -> Sent -> (401) -> Refreshing -> Retried -> {Done | SessionExpired}
//
// Retried only leads to a terminal state, so a request is retried at most once.
type state int

const (
	stateIdle state = iota
	stateSent
	stateRefreshing
	stateRetried
	stateDone
	stateSessionExpired
)

var stateNames = [...]string{
	stateIdle:           "idle",
	stateSent:           "sent",
	stateRefreshing:     "refreshing",
	stateRetried:        "retried",
	stateDone:           "done",
	stateSessionExpired: "session_expired",
}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

func (s state) terminal() bool {
	return s == stateDone || s == stateSessionExpired
}
