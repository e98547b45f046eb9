package domain

// ServiceCheck is the outcome of pinging one external service.
type ServiceCheck struct {
	// Service names the service, e.g. "embedding".
	Service string `json:"service"`

	// Target describes what was contacted, e.g. a deployment or index name.
	Target string `json:"target"`

	// Skipped is true when the service is not configured.
	Skipped bool `json:"skipped,omitempty"`

	// Err is the failure, nil when healthy.
	Err error `json:"-"`
}

// Healthy reports whether the check passed or was skipped.
func (c ServiceCheck) Healthy() bool {
	return c.Err == nil
}
