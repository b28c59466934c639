package model

import (
	"maps"
	"slices"
	"time"

	"github.com/samber/lo"
)

// RegistrySnapshot is an immutable view of the registry.
// Modifications produce a new snapshot sharing untouched services with the old one.
// Instances returned from a snapshot must not be mutated.
type RegistrySnapshot struct {
	version  uint64
	takenAt  time.Time
	services map[string][]ServiceInstance
	size     int
}

func EmptySnapshot() *RegistrySnapshot {
	return &RegistrySnapshot{services: map[string][]ServiceInstance{}}
}

func (s *RegistrySnapshot) Version() uint64 {
	return s.version
}

func (s *RegistrySnapshot) TakenAt() time.Time {
	return s.takenAt
}

func (s *RegistrySnapshot) Len() int {
	return s.size
}

func (s *RegistrySnapshot) Services() []string {
	names := lo.Keys(s.services)
	slices.Sort(names)
	return names
}

// Instances returns instances of the service in registration order.
func (s *RegistrySnapshot) Instances(service string) []ServiceInstance {
	return slices.Clone(s.services[service])
}

func (s *RegistrySnapshot) Instance(key Key) (ServiceInstance, bool) {
	return lo.Find(s.services[key.ServiceName], func(el ServiceInstance) bool {
		return el.InstanceID == key.InstanceID
	})
}

// All returns every instance, services sorted by name.
func (s *RegistrySnapshot) All() []ServiceInstance {
	res := make([]ServiceInstance, 0, s.size)
	for _, name := range s.Services() {
		res = append(res, s.services[name]...)
	}
	return res
}

// WithInstance replaces the instance with the same key in place,
// or appends inst to the end of its service.
func (s *RegistrySnapshot) WithInstance(inst ServiceInstance, at time.Time) *RegistrySnapshot {
	next := s.derive(at)

	old := s.services[inst.ServiceName]
	_, idx, found := lo.FindIndexOf(old, func(el ServiceInstance) bool {
		return el.InstanceID == inst.InstanceID
	})

	var upd []ServiceInstance
	if found {
		upd = slices.Clone(old)
		upd[idx] = inst
	} else {
		upd = make([]ServiceInstance, len(old), len(old)+1)
		copy(upd, old)
		upd = append(upd, inst)
		next.size++
	}
	next.services[inst.ServiceName] = upd

	return next
}

// Without returns s itself when key is absent.
func (s *RegistrySnapshot) Without(key Key, at time.Time) *RegistrySnapshot {
	old := s.services[key.ServiceName]
	_, idx, found := lo.FindIndexOf(old, func(el ServiceInstance) bool {
		return el.InstanceID == key.InstanceID
	})
	if !found {
		return s
	}

	next := s.derive(at)
	next.size--

	if len(old) == 1 {
		delete(next.services, key.ServiceName)
		return next
	}
	next.services[key.ServiceName] = slices.Delete(slices.Clone(old), idx, idx+1)

	return next
}

func (s *RegistrySnapshot) derive(at time.Time) *RegistrySnapshot {
	return &RegistrySnapshot{
		version:  s.version + 1,
		takenAt:  at,
		services: maps.Clone(s.services),
		size:     s.size,
	}
}
