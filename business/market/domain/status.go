package domain

// CEXStatus is the health of a centralized venue.
type CEXStatus string

const (
	CEXOnline      CEXStatus = "online"
	CEXOffline     CEXStatus = "offline"
	CEXRateLimited CEXStatus = "rate_limited"
	CEXError       CEXStatus = "error"
)

// Usable reports whether quotes from the venue may be used this cycle.
func (s CEXStatus) Usable() bool { return s == CEXOnline }

// DEXStatus is the health of a decentralized venue.
type DEXStatus string

const (
	DEXOnline  DEXStatus = "online"
	DEXOffline DEXStatus = "offline"
	DEXHighGas DEXStatus = "high_gas"
	DEXError   DEXStatus = "error"
)

// Usable reports whether pools on the venue may be used this cycle. High gas
// is still usable; detectors charge it against profit.
func (s DEXStatus) Usable() bool { return s == DEXOnline || s == DEXHighGas }

// DEXVenue identifies a DEX deployment on a network.
type DEXVenue struct {
	Network string
	Name    string
}

func (v DEXVenue) String() string { return v.Name + "@" + v.Network }
