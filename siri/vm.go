package siri

// VehicleMonitoring represents the VehicleMonitoring delivery
type VehicleMonitoring struct {
	ResponseTimestamp string                 `json:"ResponseTimestamp"`
	ValidUntil        string                 `json:"ValidUntil,omitempty"`
	VehicleActivity   []VehicleActivityEntry `json:"VehicleActivity"`
}

// VehicleActivityEntry represents a single worker's activity
type VehicleActivityEntry struct {
	RecordedAtTime          string                  `json:"RecordedAtTime"`
	ValidUntilTime          string                  `json:"ValidUntilTime,omitempty"`
	MonitoredVehicleJourney MonitoredVehicleJourney `json:"MonitoredVehicleJourney"`
}

// MonitoredVehicleJourney describes one tracked task
type MonitoredVehicleJourney struct {
	LineRef           string           `json:"LineRef"`
	PublishedLineName string           `json:"PublishedLineName,omitempty"`
	DestinationRef    string           `json:"DestinationRef,omitempty"`
	DestinationName   string           `json:"DestinationName,omitempty"`
	Monitored         bool             `json:"Monitored"`
	DataSource        string           `json:"DataSource"`
	VehicleLocation   *VehicleLocation `json:"VehicleLocation,omitempty"`
	VehicleStatus     string           `json:"VehicleStatus,omitempty"` // assigned, inProgress, completed
	VehicleRef        string           `json:"VehicleRef"`
	MonitoredCall     *MonitoredCall   `json:"MonitoredCall,omitempty"`
	// always false: a task has a single call
	IsCompleteStopSequence bool `json:"IsCompleteStopSequence"`
}

// VehicleLocation represents the geographical location of a worker
type VehicleLocation struct {
	Latitude  *float64 `json:"Latitude"`
	Longitude *float64 `json:"Longitude"`
}

// MonitoredCall is the task destination
type MonitoredCall struct {
	StopPointRef          string           `json:"StopPointRef"`
	StopPointName         string           `json:"StopPointName,omitempty"`
	VehicleAtStop         *bool            `json:"VehicleAtStop,omitempty"`
	VehicleLocationAtStop *VehicleLocation `json:"VehicleLocationAtStop,omitempty"`
	DestinationDisplay    string           `json:"DestinationDisplay,omitempty"`
	Extensions            *CallExtensions  `json:"Extensions,omitempty"`
}

// CallExtensions carries non-standard distance information
type CallExtensions struct {
	Distances Distances `json:"Distances"`
}

// Distances describes how far the worker is from the call
type Distances struct {
	PresentableDistance string   `json:"PresentableDistance"`
	DistanceFromCall    *float64 `json:"DistanceFromCall"`
}
