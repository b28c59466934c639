package journal

import "github.com/horockey/eureka/internal/model"

// Journal durably mirrors live instances so a restarted node can restore them.
type Journal interface {
	model.MetricsProvider
	Save(rec model.InstanceRecord) error
	// Delete of an absent key is not an error.
	Delete(key model.Key) error
	LoadAll() ([]model.InstanceRecord, error)
}
