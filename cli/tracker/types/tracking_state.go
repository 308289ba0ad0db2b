package types

import (
	"encoding/json"
	"fmt"
)

type TrackingState string

const (
	TrackingStateIdle      TrackingState = "idle"
	TrackingStateRecording TrackingState = "recording"
	TrackingStateStopped   TrackingState = "stopped"
	TrackingStateViewing   TrackingState = "viewing"
)

var trackingStateSet = map[TrackingState]struct{}{
	TrackingStateIdle:      {},
	TrackingStateRecording: {},
	TrackingStateStopped:   {},
	TrackingStateViewing:   {},
}

func (ts TrackingState) IsValid() bool {
	_, ok := trackingStateSet[ts]
	return ok
}

func ParseTrackingState(s string) (TrackingState, error) {
	v := TrackingState(s)
	if !v.IsValid() {
		return "", fmt.Errorf("недопустимое состояние записи: %q", s)
	}
	return v, nil
}

func (ts *TrackingState) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTrackingState(s)
	if err != nil {
		return err
	}
	*ts = v
	return nil
}

func (ts TrackingState) MarshalJSON() ([]byte, error) {
	if !ts.IsValid() {
		return nil, fmt.Errorf("недопустимое состояние записи: %q", string(ts))
	}
	return json.Marshal(string(ts))
}
