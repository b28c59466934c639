package dto_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/horockey/eureka/internal/controller/http_controller/dto"
	"github.com/horockey/eureka/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_PeerEvent_KeepsSubSecondLease(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	ev := model.PeerEvent{
		Type: model.EventRegister,
		Instance: model.ServiceInstance{
			ServiceName:           "orders-api",
			InstanceID:            "i1",
			Host:                  "10.0.0.5",
			Port:                  8080,
			Status:                model.StatusUp,
			LeaseDuration:         1500 * time.Millisecond,
			RegistrationTimestamp: ts,
			LastRenewalTimestamp:  ts,
		},
		OriginTimestamp: ts,
		OriginPeerID:    "node-a",
	}

	raw, err := json.Marshal(dto.NewPeerEvent(ev))
	require.NoError(t, err)

	got, err := dto.PeerEventToModel(raw)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, got.Instance.LeaseDuration)
}

func Test_InstanceToModel_LeaseUnits(t *testing.T) {
	cases := map[string]struct {
		in   dto.Instance
		want time.Duration
	}{
		"seconds": {dto.Instance{LeaseDurationSeconds: 30}, 30 * time.Second},
		"millis":  {dto.Instance{LeaseDurationMillis: 500}, 500 * time.Millisecond},
		"both":    {dto.Instance{LeaseDurationSeconds: 1, LeaseDurationMillis: 1500}, 1500 * time.Millisecond},
		"none":    {dto.Instance{}, 0},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := dto.InstanceToModel(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.LeaseDuration)
		})
	}

	_, err := dto.InstanceToModel(dto.Instance{LeaseDurationMillis: -1})
	assert.Error(t, err)
}
