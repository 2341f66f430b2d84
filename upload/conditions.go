// Package upload runs the asynchronous upload cycle: wait, check device
// conditions, read the next stored batch, send it, classify the outcome,
// and adjust the delay before the next cycle.
package upload

import (
	"github.com/pithecene-io/courier/device"
)

// Conditions is the admission-control predicate gating upload attempts.
// It is a pure function of one device snapshot, evaluated fresh at the
// start of every cycle.
type Conditions struct {
	// MinBatteryLevel is the charge fraction below which an unplugged
	// device blocks uploads.
	MinBatteryLevel float64
}

// Blockers returns the reasons the snapshot blocks an upload, empty when
// the upload may proceed. Devices without battery reporting never block on
// battery.
func (c Conditions) Blockers(s device.Snapshot) []string {
	var blockers []string
	if !s.NetworkReachable {
		blockers = append(blockers, "network unreachable")
	}
	if s.Battery != device.BatteryUnknown {
		if s.Battery == device.BatteryUnplugged && s.BatteryLevel < c.MinBatteryLevel {
			blockers = append(blockers, "battery critically low")
		}
		if s.LowPowerMode {
			blockers = append(blockers, "low power mode")
		}
	}
	return blockers
}

// CanPerform reports whether an upload attempt is allowed this cycle.
func (c Conditions) CanPerform(s device.Snapshot) bool {
	return len(c.Blockers(s)) == 0
}
