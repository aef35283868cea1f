package eelink

import "github.com/phuslu/log"

// StatusFlag is one decoded bit of the device status word.
type StatusFlag struct {
	Bit  int
	Set  bool
	Desc string
}

var statusBits = [16]struct {
	key string
	hi  string
	lo  string
}{
	{"gps_fixed", "GPS fixed", "GPS NOT fixed"},
	{"car_device", "Car device", "NOT car device"},
	{"engine", "Engine fired", "Engine NOT fired"},
	{"accelerometer", "Accelerometer supported", "No accelerometer"},
	{"motion_warning", "Motion-warning active", "Motion-warning inactive"},
	{"relay_support", "Relay control supported", "No relay control"},
	{"relay", "Relay triggered", "Relay NOT triggered"},
	{"ext_charging", "External charging supported", "No external charging"},
	{"charging", "Charging", "NOT charging"},
	{"active", "Device active", "Device stationary"},
	{"gps_module", "GPS module running", "GPS module NOT running"},
	{"obd_module", "OBD module running", "OBD module NOT running"},
	{"din0", "DIN0 HIGH", "DIN0 LOW"},
	{"din1", "DIN1 HIGH", "DIN1 LOW"},
	{"din2", "DIN2 HIGH", "DIN2 LOW"},
	{"din3", "DIN3 HIGH", "DIN3 LOW"},
}

// DecodeStatus expands the 16-bit status word into one flag per bit,
// lowest bit first.
func DecodeStatus(status uint16) [16]StatusFlag {
	var flags [16]StatusFlag
	for i := range statusBits {
		set := status&(1<<uint(i)) != 0
		desc := statusBits[i].lo
		if set {
			desc = statusBits[i].hi
		}
		flags[i] = StatusFlag{Bit: i, Set: set, Desc: desc}
	}
	return flags
}

// FlagMap renders the status word as flag-name to set, for event payloads.
func FlagMap(status uint16) map[string]bool {
	m := make(map[string]bool, len(statusBits))
	for i, b := range statusBits {
		m[b.key] = status&(1<<uint(i)) != 0
	}
	return m
}

// Status attaches log marshalling to a raw status word.
type Status uint16

func (s Status) MarshalObject(e *log.Entry) {
	for i, b := range statusBits {
		e.Bool(b.key, uint16(s)&(1<<uint(i)) != 0)
	}
}
