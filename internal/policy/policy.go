// Package policy holds the numeric allocation rules consulted before a
// port lease is created. Kept free of storage so the rules can be tested
// on their own.
package policy

// Policy carries the configured allocation bounds.
type Policy struct {
	MaxPortsPerUser int
	MinPort         int
	MaxPort         int
}

// CheckQuota reports whether a user holding current active leases may
// lease one more.
func (p Policy) CheckQuota(current int) bool {
	return current < p.MaxPortsPerUser
}

// CheckRange reports whether a port number lies inside the leasable range.
func (p Policy) CheckRange(portNumber int) bool {
	return portNumber >= p.MinPort && portNumber <= p.MaxPort
}
