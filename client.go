package socmonitor

// Client interface to one rig's control surface
type Client interface {
	// IP of the rig
	IP() string
	// Hashing probes the rig and reports whether it is currently hashing
	Hashing() (bool, error)
	// SetHashing starts or stops hashing on the rig
	SetHashing(active bool) error

	// PlugEnabled bool to indicate if this rig has a smart plug attached
	PlugEnabled() bool
	// PlugState returns the smart plug relay state and wall power draw
	PlugState() (*PowerState, error)
	// PowerCut turns the smart plug off, hard-stopping the rig
	PowerCut() error
	// PowerRestore turns the smart plug back on
	PowerRestore() error

	// SetReadOnly to disable changing the state of the rig
	SetReadOnly(readOnly, failOnWrites bool)
	// ReadOnly indicates if this rig is readonly
	ReadOnly() bool
}
