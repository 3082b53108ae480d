package types

// ConnState is the lifecycle state of the bus session.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected" // no session, or the session was lost
	ConnConnecting   ConnState = "connecting"   // connector running
	ConnConnected    ConnState = "connected"    // session usable, listeners running
)
