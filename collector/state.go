package collector

import "strconv"

type State uint32

const (
  StateIdle State = iota
  StateDiscovering
  StateConnecting
  StateSubscribed
  StateObserving
  StateDisconnecting
  StateReporting
)

var stateNames = [...]string{
  StateIdle:          "Idle",
  StateDiscovering:   "Discovering",
  StateConnecting:    "Connecting",
  StateSubscribed:    "Subscribed",
  StateObserving:     "Observing",
  StateDisconnecting: "Disconnecting",
  StateReporting:     "Reporting",
}

func (s State) String() string {
  if int(s) < len(stateNames) {
    return stateNames[s]
  }

  return "State(" + strconv.Itoa(int(s)) + ")"
}
