package eelink

import (
	"encoding/binary"
	"fmt"
)

// feature mask bits, sub-structures appear in ascending bit order
const (
	maskGPS   byte = 0x01
	maskBSID0 byte = 0x02
	maskBSID1 byte = 0x04
	maskBSID2 byte = 0x08
	maskBSS0  byte = 0x10
	maskBSS1  byte = 0x20
	maskBSS2  byte = 0x40
)

// raw coordinates are fixed-point fractions of the quarter/half circle
const (
	latScale = 162000000.0 / 90.0
	lonScale = 324000000.0 / 180.0
)

type GPSFix struct {
	Latitude   float64
	Longitude  float64
	Altitude   int16
	Speed      uint16 // km/h
	Course     uint16 // degrees
	Satellites uint8
}

// CellInfo is the serving cell of the GSM modem.
type CellInfo struct {
	MCC   uint16 `json:"mcc"`
	MNC   uint16 `json:"mnc"`
	LAC   uint16 `json:"lac"`
	CID   uint32 `json:"cid"`
	RxLev uint8  `json:"rxlev"`
}

// NeighborCell carries no mcc/mnc, those are shared with the serving cell.
type NeighborCell struct {
	LAC   uint16 `json:"lac"`
	CI    uint32 `json:"ci"`
	RxLev uint8  `json:"rxlev"`
}

type WifiAP struct {
	BSSID string `json:"bssid"`
	RSSI  int8   `json:"rssi"`
}

type Position struct {
	Time  uint32 // epoch seconds
	Mask  byte
	GPS   *GPSFix
	Cell  *CellInfo
	Cell1 *NeighborCell
	Cell2 *NeighborCell
	Wifi0 *WifiAP
	Wifi1 *WifiAP
	Wifi2 *WifiAP
}

// parsePosition decodes the variable-length position structure and reports
// how many bytes of d it consumed so the caller can locate the telemetry
// fields that follow.
func parsePosition(d []byte) (Position, int, error) {
	r := &reader{d: d}
	m := Position{}
	var err error
	m.Time, err = r.uint32()
	if err != nil {
		return m, r.off, err
	}
	m.Mask, err = r.uint8()
	if err != nil {
		return m, r.off, err
	}
	if m.Mask&maskGPS != 0 {
		m.GPS, err = parseGPSFix(r)
		if err != nil {
			return m, r.off, err
		}
	}
	if m.Mask&maskBSID0 != 0 {
		m.Cell, err = parseCellInfo(r)
		if err != nil {
			return m, r.off, err
		}
	}
	if m.Mask&maskBSID1 != 0 {
		m.Cell1, err = parseNeighborCell(r)
		if err != nil {
			return m, r.off, err
		}
	}
	if m.Mask&maskBSID2 != 0 {
		m.Cell2, err = parseNeighborCell(r)
		if err != nil {
			return m, r.off, err
		}
	}
	if m.Mask&maskBSS0 != 0 {
		m.Wifi0, err = parseWifiAP(r)
		if err != nil {
			return m, r.off, err
		}
	}
	if m.Mask&maskBSS1 != 0 {
		m.Wifi1, err = parseWifiAP(r)
		if err != nil {
			return m, r.off, err
		}
	}
	if m.Mask&maskBSS2 != 0 {
		m.Wifi2, err = parseWifiAP(r)
		if err != nil {
			return m, r.off, err
		}
	}
	return m, r.off, nil
}

func parseGPSFix(r *reader) (*GPSFix, error) {
	d, err := r.bytes(15)
	if err != nil {
		return nil, err
	}
	g := &GPSFix{}
	g.Latitude = float64(int32(binary.BigEndian.Uint32(d[0:4]))) / latScale
	g.Longitude = float64(int32(binary.BigEndian.Uint32(d[4:8]))) / lonScale
	g.Altitude = int16(binary.BigEndian.Uint16(d[8:10]))
	g.Speed = binary.BigEndian.Uint16(d[10:12])
	g.Course = binary.BigEndian.Uint16(d[12:14])
	g.Satellites = d[14]
	return g, nil
}

func parseCellInfo(r *reader) (*CellInfo, error) {
	d, err := r.bytes(11)
	if err != nil {
		return nil, err
	}
	c := &CellInfo{}
	c.MCC = binary.BigEndian.Uint16(d[0:2])
	c.MNC = binary.BigEndian.Uint16(d[2:4])
	c.LAC = binary.BigEndian.Uint16(d[4:6])
	c.CID = binary.BigEndian.Uint32(d[6:10])
	c.RxLev = d[10]
	return c, nil
}

func parseNeighborCell(r *reader) (*NeighborCell, error) {
	d, err := r.bytes(7)
	if err != nil {
		return nil, err
	}
	c := &NeighborCell{}
	c.LAC = binary.BigEndian.Uint16(d[0:2])
	c.CI = binary.BigEndian.Uint32(d[2:6])
	c.RxLev = d[6]
	return c, nil
}

func parseWifiAP(r *reader) (*WifiAP, error) {
	d, err := r.bytes(7)
	if err != nil {
		return nil, err
	}
	w := &WifiAP{}
	w.BSSID = fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", d[0], d[1], d[2], d[3], d[4], d[5])
	w.RSSI = int8(d[6])
	return w, nil
}
