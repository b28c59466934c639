package dto

import (
	"time"

	"github.com/horockey/eureka/internal/model"
)

// Instance timestamps are unix milliseconds.
// LeaseDurationMillis takes precedence over LeaseDurationSeconds when both are set.
type Instance struct {
	ServiceName           string            `json:"serviceName"`
	InstanceID            string            `json:"instanceId,omitempty"`
	Host                  string            `json:"host"`
	Port                  int               `json:"port"`
	Status                string            `json:"status,omitempty"`
	Metadata              map[string]string `json:"metadata,omitempty"`
	LeaseDurationSeconds  int64             `json:"leaseDurationSeconds,omitempty"`
	LeaseDurationMillis   int64             `json:"leaseDurationMillis,omitempty"`
	RegistrationTimestamp int64             `json:"registrationTimestamp,omitempty"`
	LastRenewalTimestamp  int64             `json:"lastRenewalTimestamp,omitempty"`
}

type RegisterResponse struct {
	InstanceID string `json:"instanceId"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type ServicesResponse struct {
	Services map[string][]Instance `json:"services"`
}

func NewInstance(inst model.ServiceInstance) Instance {
	return Instance{
		ServiceName:           inst.ServiceName,
		InstanceID:            inst.InstanceID,
		Host:                  inst.Host,
		Port:                  inst.Port,
		Status:                string(inst.Status),
		Metadata:              inst.Metadata,
		LeaseDurationSeconds:  int64(inst.LeaseDuration / time.Second),
		LeaseDurationMillis:   inst.LeaseDuration.Milliseconds(),
		RegistrationTimestamp: unixMilli(inst.RegistrationTimestamp),
		LastRenewalTimestamp:  unixMilli(inst.LastRenewalTimestamp),
	}
}

func NewInstances(instances []model.ServiceInstance) []Instance {
	res := make([]Instance, 0, len(instances))
	for _, el := range instances {
		res = append(res, NewInstance(el))
	}
	return res
}

// InstanceToModel converts without validating required fields;
// it fails only on values that cannot be represented in the model.
func InstanceToModel(inst Instance) (model.ServiceInstance, error) {
	st, err := model.ParseStatus(inst.Status)
	if err != nil {
		return model.ServiceInstance{}, err
	}
	if inst.LeaseDurationSeconds < 0 {
		return model.ServiceInstance{}, model.ValidationError{Field: "leaseDurationSeconds", Reason: "must not be negative"}
	}
	if inst.LeaseDurationMillis < 0 {
		return model.ServiceInstance{}, model.ValidationError{Field: "leaseDurationMillis", Reason: "must not be negative"}
	}

	lease := time.Duration(inst.LeaseDurationSeconds) * time.Second
	if inst.LeaseDurationMillis != 0 {
		lease = time.Duration(inst.LeaseDurationMillis) * time.Millisecond
	}

	return model.ServiceInstance{
		ServiceName:           inst.ServiceName,
		InstanceID:            inst.InstanceID,
		Host:                  inst.Host,
		Port:                  inst.Port,
		Status:                st,
		Metadata:              inst.Metadata,
		LeaseDuration:         lease,
		RegistrationTimestamp: fromUnixMilli(inst.RegistrationTimestamp),
		LastRenewalTimestamp:  fromUnixMilli(inst.LastRenewalTimestamp),
	}, nil
}

func unixMilli(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
