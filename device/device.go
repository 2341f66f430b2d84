// Package device reports the resource state the upload admission control
// gates on: network reachability and battery condition.
//
// Providers are polled once at the start of every upload cycle; snapshots
// are never cached across cycles.
package device

import "net"

// BatteryState describes the charging status at snapshot time.
type BatteryState string

const (
	// BatteryUnknown means the host reports no battery telemetry (desktops,
	// servers, simulators). Admission control treats it as permissive.
	BatteryUnknown BatteryState = "unknown"
	// BatteryCharging means the device is plugged in and charging or full.
	BatteryCharging BatteryState = "charging"
	// BatteryUnplugged means the device is discharging.
	BatteryUnplugged BatteryState = "unplugged"
)

// Snapshot is one point-in-time view of device resources.
type Snapshot struct {
	// NetworkReachable reports whether any interface can carry traffic.
	NetworkReachable bool
	// Battery is the charging state; BatteryUnknown when unreported.
	Battery BatteryState
	// BatteryLevel is the charge fraction in [0,1]; meaningful only when
	// Battery is not BatteryUnknown.
	BatteryLevel float64
	// LowPowerMode reports whether the OS requested reduced background
	// activity.
	LowPowerMode bool
}

// Provider yields device snapshots.
type Provider interface {
	Snapshot() Snapshot
}

// HostProvider reports the state of the machine courier runs on. Network
// reachability is derived from the presence of a non-loopback interface
// with an assigned address; battery state is unreported, which admission
// control treats as permissive (hosts without battery telemetry always
// permit).
type HostProvider struct{}

// Snapshot implements Provider.
func (HostProvider) Snapshot() Snapshot {
	return Snapshot{
		NetworkReachable: hostNetworkReachable(),
		Battery:          BatteryUnknown,
	}
}

func hostNetworkReachable() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		// Assume reachable; the transport will classify real failures.
		return true
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// StaticProvider returns a fixed snapshot. Tests and embedders with their
// own platform telemetry use it to drive admission control directly.
type StaticProvider struct {
	State Snapshot
}

// Snapshot implements Provider.
func (p *StaticProvider) Snapshot() Snapshot { return p.State }

// Verify implementations.
var (
	_ Provider = HostProvider{}
	_ Provider = (*StaticProvider)(nil)
)
