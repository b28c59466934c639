package eureka

import "github.com/horockey/eureka/internal/model"

type (
	ValidationError           = model.ValidationError
	NotFoundError             = model.NotFoundError
	ReplicationTransientError = model.ReplicationTransientError
)
