package socmonitor

const (
	// RUNNING state of the monitor, the sampling loop is active
	RUNNING = iota
	// STOPPED state of the monitor, no longer polling the sensor
	STOPPED
)
