package messaging

// HealthStatus represents the health state of a messaging connection.
type HealthStatus struct {
	// Connected indicates if the client is connected.
	Connected bool `json:"connected"`

	// Error contains any error message if unhealthy.
	Error string `json:"error,omitempty"`
}

// CheckClientHealth reports whether client is connected to its broker.
func CheckClientHealth(client Client) HealthStatus {
	if client == nil {
		return HealthStatus{Error: "client is nil"}
	}
	if !client.IsConnected() {
		return HealthStatus{Error: "not connected to message broker"}
	}
	return HealthStatus{Connected: true}
}
