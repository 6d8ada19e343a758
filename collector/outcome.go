package collector

import (
  "errors"
  "fmt"

  "github.com/robertof/go-vitals-collector/device"
)

// ErrEmptySession is logged when an observation window ends without a single reading.
var ErrEmptySession = errors.New("no data received during observation window")

type OutcomeKind uint8

const (
  OutcomeDelivered OutcomeKind = iota
  OutcomeEmptySession
  OutcomeConnectFailed
  OutcomeSubscribeFailed
)

func (k OutcomeKind) String() string {
  switch k {
  case OutcomeDelivered:
    return "delivered"
  case OutcomeEmptySession:
    return "empty_session"
  case OutcomeConnectFailed:
    return "connect_failed"
  case OutcomeSubscribeFailed:
    return "subscribe_failed"
  default:
    return fmt.Sprintf("unknown(%d)", uint8(k))
  }
}

// Outcome is the result of one session. Readings is only set for OutcomeDelivered.
type Outcome struct {
  Kind OutcomeKind
  Readings device.ReadingSet
}

func (o Outcome) String() string {
  if o.Kind == OutcomeDelivered {
    return fmt.Sprintf("outcome:%v(%d readings)", o.Kind, len(o.Readings))
  }

  return "outcome:" + o.Kind.String()
}
