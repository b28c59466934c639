package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/horockey/eureka/internal/model"
)

// PeerEvent carries the origin timestamp in unix nanoseconds,
// since conflict resolution compares it exactly.
type PeerEvent struct {
	Type            string   `json:"type"`
	Instance        Instance `json:"instance"`
	OriginTimestamp int64    `json:"originTimestamp"`
	OriginPeerID    string   `json:"originPeerId"`
}

// PeerEventsRequest keeps events raw so one malformed event
// does not reject the whole batch.
type PeerEventsRequest struct {
	Events []json.RawMessage `json:"events"`
}

type PeerEventsResponse struct {
	Applied   int `json:"applied"`
	Skipped   int `json:"skipped"`
	Malformed int `json:"malformed"`
}

func NewPeerEvent(ev model.PeerEvent) PeerEvent {
	return PeerEvent{
		Type:            string(ev.Type),
		Instance:        NewInstance(ev.Instance),
		OriginTimestamp: ev.OriginTimestamp.UnixNano(),
		OriginPeerID:    ev.OriginPeerID,
	}
}

func NewPeerEventsRequest(events []model.PeerEvent) (PeerEventsRequest, error) {
	req := PeerEventsRequest{Events: make([]json.RawMessage, 0, len(events))}
	for _, ev := range events {
		raw, err := json.Marshal(NewPeerEvent(ev))
		if err != nil {
			return PeerEventsRequest{}, fmt.Errorf("marshaling event: %w", err)
		}
		req.Events = append(req.Events, raw)
	}
	return req, nil
}

func PeerEventToModel(raw json.RawMessage) (model.PeerEvent, error) {
	ev := PeerEvent{}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return model.PeerEvent{}, fmt.Errorf("unmarshaling json: %w", err)
	}

	inst, err := InstanceToModel(ev.Instance)
	if err != nil {
		return model.PeerEvent{}, fmt.Errorf("converting instance: %w", err)
	}

	res := model.PeerEvent{
		Type:         model.EventType(ev.Type),
		Instance:     inst,
		OriginPeerID: ev.OriginPeerID,
	}
	if ev.OriginTimestamp != 0 {
		res.OriginTimestamp = time.Unix(0, ev.OriginTimestamp)
	}

	if err := res.Validate(); err != nil {
		return model.PeerEvent{}, fmt.Errorf("validating event: %w", err)
	}
	return res, nil
}
