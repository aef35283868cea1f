package eelink

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/phuslu/log"
)

// telemetry fields trail the position structure in every location record
const telemetrySize = 32

type Telemetry struct {
	Status      uint16
	Battery     float64 // volts
	Ain0        uint16
	Ain1        uint16
	Mileage     float64 // km
	GsmCounter  uint16
	GpsCounter  uint16
	Steps       uint16
	StepTime    uint16
	Temperature float64 // celsius
	Humidity    uint16
	Illuminance uint32
	CO2         uint32
}

// Record is one 74-byte location report, a complete frame of its own
// carrying its own sequence number.
type Record struct {
	Seq uint16
	Position
	Telemetry
}

// parseLogin extracts the device identity from a login packet. The IMEI
// travels as an 8-byte big-endian integer at bytes 7..14 and is rendered
// as lowercase hex.
func parseLogin(p []byte) (string, error) {
	if len(p) < minLoginPacket {
		return "", errShortData
	}
	return strconv.FormatUint(binary.BigEndian.Uint64(p[7:15]), 16), nil
}

// parseRecord decodes one location record. Records that do not span the
// full 74 bytes or whose position overruns the telemetry fields are
// rejected whole.
func parseRecord(chunk []byte) (Record, error) {
	m := Record{}
	if len(chunk) < recordSize {
		return m, errShortData
	}
	m.Seq = binary.BigEndian.Uint16(chunk[5:7])
	pos, n, err := parsePosition(chunk[7:])
	if err != nil {
		return m, err
	}
	m.Position = pos
	r := &reader{d: chunk[7:], off: n}
	m.Telemetry, err = parseTelemetry(r)
	return m, err
}

func parseTelemetry(r *reader) (Telemetry, error) {
	d, err := r.bytes(telemetrySize)
	if err != nil {
		return Telemetry{}, err
	}
	t := Telemetry{}
	t.Status = binary.BigEndian.Uint16(d[0:2])
	t.Battery = float64(binary.BigEndian.Uint16(d[2:4])) / 1000.0
	t.Ain0 = binary.BigEndian.Uint16(d[4:6])
	t.Ain1 = binary.BigEndian.Uint16(d[6:8])
	t.Mileage = float64(binary.BigEndian.Uint32(d[8:12])) / 1000.0
	t.GsmCounter = binary.BigEndian.Uint16(d[12:14])
	t.GpsCounter = binary.BigEndian.Uint16(d[14:16])
	t.Steps = binary.BigEndian.Uint16(d[16:18])
	t.StepTime = binary.BigEndian.Uint16(d[18:20])
	t.Temperature = float64(binary.BigEndian.Uint16(d[20:22])) / 256.0
	t.Humidity = binary.BigEndian.Uint16(d[22:24])
	t.Illuminance = binary.BigEndian.Uint32(d[24:28])
	t.CO2 = binary.BigEndian.Uint32(d[28:32])
	return t, nil
}

// HeartbeatEvent is published on every heartbeat of an identified device.
type HeartbeatEvent struct {
	Status      uint16          `json:"status"`
	Timestamp   string          `json:"timestamp"`
	StatusFlags map[string]bool `json:"status_flags,omitempty"`
}

// LocationEvent is published per decoded record of an identified device.
// GPS-derived fields are null when the record carried no fix.
type LocationEvent struct {
	Timestamp   string    `json:"timestamp"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Altitude    *int16    `json:"altitude"`
	Speed       *uint16   `json:"speed"`
	Course      *uint16   `json:"course"`
	Satellites  *uint8    `json:"satellites"`
	Battery     float64   `json:"battery"`
	Temperature float64   `json:"temperature"`
	Humidity    uint16    `json:"humidity"`
	Illuminance uint32    `json:"illuminance"`
	CO2         uint32    `json:"co2"`
	Mileage     float64   `json:"mileage"`
	Steps       uint16    `json:"steps"`
	Status      uint16    `json:"status"`
	Ain0        uint16    `json:"ain0"`
	Ain1        uint16    `json:"ain1"`
	CellInfo    *CellInfo `json:"cell_info"`

	StatusFlags map[string]bool `json:"status_flags,omitempty"`
}

// NewLocationEvent renders one record the way consumers expect it, the
// monitoring api uses it for the last known record as well.
func NewLocationEvent(rec *Record) LocationEvent {
	ev := LocationEvent{}
	ev.Timestamp = time.Unix(int64(rec.Time), 0).UTC().Format(time.RFC3339)
	if rec.GPS != nil {
		ev.Latitude = &rec.GPS.Latitude
		ev.Longitude = &rec.GPS.Longitude
		ev.Altitude = &rec.GPS.Altitude
		ev.Speed = &rec.GPS.Speed
		ev.Course = &rec.GPS.Course
		ev.Satellites = &rec.GPS.Satellites
	}
	ev.Battery = rec.Battery
	ev.Temperature = rec.Temperature
	ev.Humidity = rec.Humidity
	ev.Illuminance = rec.Illuminance
	ev.CO2 = rec.CO2
	ev.Mileage = rec.Mileage
	ev.Steps = rec.Steps
	ev.Status = rec.Status
	ev.Ain0 = rec.Ain0
	ev.Ain1 = rec.Ain1
	ev.CellInfo = rec.Cell
	return ev
}

func (r *Record) MarshalObject(e *log.Entry) {
	e.Int("seq", int(r.Seq)).Uint32("time", r.Time)
	if r.GPS != nil {
		e.Float64("lat", r.GPS.Latitude).Float64("lon", r.GPS.Longitude).Int("alt", int(r.GPS.Altitude)).Int("speed", int(r.GPS.Speed)).Int("sat_count", int(r.GPS.Satellites))
	}
	e.Float64("battery", r.Battery).Float64("temperature", r.Temperature)
}
