package model

// HealthStatus is the payload of the health probe endpoint
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// NewHealthStatus reports the service as healthy. The bot keeps no
// local state between events, so process liveness is the only
// meaningful health signal.
func NewHealthStatus(service, version string) *HealthStatus {
	return &HealthStatus{
		Status:  "healthy",
		Service: service,
		Version: version,
	}
}
