package types

// ------------------------
// Wireless station
// ------------------------

// StationConfig is the network identity and credential used to associate.
// Empty values are accepted; association will simply fail.
type StationConfig struct {
	SSID     string
	Password string
}

// AccessPoint is one scan result.
type AccessPoint struct {
	SSID    string
	RSSI    int16
	Channel uint8
}

// ConnState is the connectivity manager's lifecycle state.
type ConnState uint8

const (
	ConnIdle ConnState = iota
	ConnStarting
	ConnScanning
	ConnConnecting
	ConnConnected
	ConnWaitingForDisconnect
	ConnStopped
)

func (s ConnState) String() string {
	switch s {
	case ConnIdle:
		return "idle"
	case ConnStarting:
		return "starting"
	case ConnScanning:
		return "scanning"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnWaitingForDisconnect:
		return "waiting_for_disconnect"
	case ConnStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Step is the progress code written to the liveness marker at each
// connectivity step boundary. Values are distinct so a stall report can say
// where the manager got stuck.
type Step uint8

const (
	StepNone Step = iota
	StepLoop
	StepConfigure
	StepStart
	StepScan
	StepConnect
	StepConnected
	StepConnectFailed
	StepWaitDisconnect
	StepDisconnected
	StepPause
	StepStopped
)

func (s Step) String() string {
	switch s {
	case StepNone:
		return "none"
	case StepLoop:
		return "loop"
	case StepConfigure:
		return "configure"
	case StepStart:
		return "start"
	case StepScan:
		return "scan"
	case StepConnect:
		return "connect"
	case StepConnected:
		return "connected"
	case StepConnectFailed:
		return "connect_failed"
	case StepWaitDisconnect:
		return "wait_disconnect"
	case StepDisconnected:
		return "disconnected"
	case StepPause:
		return "pause"
	case StepStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Topics shared over the bus.
const (
	TopicNet   = "net"
	TopicState = "state"
)
