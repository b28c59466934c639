package model_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/horockey/eureka/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inst(service, id string) model.ServiceInstance {
	return model.ServiceInstance{
		ServiceName: service,
		InstanceID:  id,
		Host:        "10.0.0.1",
		Port:        8080,
		Status:      model.StatusUp,
	}
}

func ids(instances []model.ServiceInstance) []string {
	res := []string{}
	for _, el := range instances {
		res = append(res, el.InstanceID)
	}
	return res
}

func Test_Snapshot_InsertionOrder(t *testing.T) {
	now := time.Now()
	s := model.EmptySnapshot().
		WithInstance(inst("orders", "b"), now).
		WithInstance(inst("orders", "a"), now).
		WithInstance(inst("orders", "c"), now)

	assert.Equal(t, []string{"b", "a", "c"}, ids(s.Instances("orders")))
	assert.Equal(t, 3, s.Len())
	assert.EqualValues(t, 3, s.Version())
}

func Test_Snapshot_OverwriteKeepsPosition(t *testing.T) {
	now := time.Now()
	s := model.EmptySnapshot().
		WithInstance(inst("orders", "a"), now).
		WithInstance(inst("orders", "b"), now)

	upd := inst("orders", "a")
	upd.Port = 9090
	s = s.WithInstance(upd, now)

	assert.Equal(t, []string{"a", "b"}, ids(s.Instances("orders")))
	assert.Equal(t, 2, s.Len())

	got, found := s.Instance(upd.Key())
	require.True(t, found)
	assert.Equal(t, 9090, got.Port)
}

func Test_Snapshot_OldSnapshotUntouched(t *testing.T) {
	now := time.Now()
	old := model.EmptySnapshot().
		WithInstance(inst("orders", "a"), now).
		WithInstance(inst("billing", "x"), now)
	before := old.All()

	next := old.WithInstance(inst("orders", "b"), now).Without(model.Key{ServiceName: "billing", InstanceID: "x"}, now)

	if diff := cmp.Diff(before, old.All()); diff != "" {
		t.Errorf("old snapshot mutated (-before +after):\n%s", diff)
	}
	assert.Equal(t, []string{"orders"}, next.Services())
	assert.Equal(t, []string{"billing", "orders"}, old.Services())
}

func Test_Snapshot_WithoutAbsentIsSame(t *testing.T) {
	s := model.EmptySnapshot().WithInstance(inst("orders", "a"), time.Now())
	assert.Same(t, s, s.Without(model.Key{ServiceName: "orders", InstanceID: "zzz"}, time.Now()))
	assert.Same(t, s, s.Without(model.Key{ServiceName: "nope", InstanceID: "a"}, time.Now()))
}

func Test_Snapshot_WithoutMiddle(t *testing.T) {
	now := time.Now()
	s := model.EmptySnapshot().
		WithInstance(inst("orders", "a"), now).
		WithInstance(inst("orders", "b"), now).
		WithInstance(inst("orders", "c"), now)

	s = s.Without(model.Key{ServiceName: "orders", InstanceID: "b"}, now)
	assert.Equal(t, []string{"a", "c"}, ids(s.Instances("orders")))
	assert.Equal(t, 2, s.Len())
}

func Test_Snapshot_InstancesReturnsCopy(t *testing.T) {
	s := model.EmptySnapshot().WithInstance(inst("orders", "a"), time.Now())
	got := s.Instances("orders")
	got[0].Port = 1

	again, _ := s.Instance(model.Key{ServiceName: "orders", InstanceID: "a"})
	assert.Equal(t, 8080, again.Port)
}
