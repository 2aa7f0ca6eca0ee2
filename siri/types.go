package siri

// SiriResponse is the top-level SIRI response structure
type SiriResponse struct {
	Siri SiriServiceDelivery `json:"Siri"`
}

// SiriServiceDelivery wraps the ServiceDelivery element
type SiriServiceDelivery struct {
	ServiceDelivery ServiceDelivery `json:"ServiceDelivery"`
}

// ServiceDelivery carries the VehicleMonitoring delivery
type ServiceDelivery struct {
	ResponseTimestamp         string              `json:"ResponseTimestamp"`
	ProducerRef               string              `json:"ProducerRef,omitempty"`
	VehicleMonitoringDelivery []VehicleMonitoring `json:"VehicleMonitoringDelivery"`
}
