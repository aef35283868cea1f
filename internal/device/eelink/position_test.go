package eelink

import (
	"encoding/binary"
	"testing"
)

func TestParsePositionEmptyMask(t *testing.T) {
	d := make([]byte, 40)
	binary.BigEndian.PutUint32(d[0:4], 1700000000)
	d[4] = 0x00
	p, n, err := parsePosition(d)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("consumed %d bytes, want 5", n)
	}
	if p.Time != 1700000000 || p.Mask != 0 {
		t.Errorf("time=%d mask=%#x", p.Time, p.Mask)
	}
	if p.GPS != nil || p.Cell != nil || p.Cell1 != nil || p.Cell2 != nil || p.Wifi0 != nil || p.Wifi1 != nil || p.Wifi2 != nil {
		t.Error("sub-records present with empty mask")
	}
}

func TestParsePositionGPS(t *testing.T) {
	d := make([]byte, 40)
	binary.BigEndian.PutUint32(d[0:4], 1700000000)
	d[4] = maskGPS
	binary.BigEndian.PutUint32(d[5:9], 145800000)               // 81 degrees north
	binary.BigEndian.PutUint32(d[9:13], uint32(int32(-162000000))) // 90 degrees west
	binary.BigEndian.PutUint16(d[13:15], 0xFFFF)                // -1 m
	binary.BigEndian.PutUint16(d[15:17], 60)
	binary.BigEndian.PutUint16(d[17:19], 270)
	d[19] = 9
	p, n, err := parsePosition(d)
	if err != nil {
		t.Fatal(err)
	}
	if n != 20 {
		t.Errorf("consumed %d bytes, want 20", n)
	}
	if p.GPS == nil {
		t.Fatal("no gps fix")
	}
	if p.GPS.Latitude != 81.0 {
		t.Errorf("latitude %v, want 81.0", p.GPS.Latitude)
	}
	if p.GPS.Longitude != -90.0 {
		t.Errorf("longitude %v, want -90.0", p.GPS.Longitude)
	}
	if p.GPS.Altitude != -1 {
		t.Errorf("altitude %d, want -1", p.GPS.Altitude)
	}
	if p.GPS.Speed != 60 || p.GPS.Course != 270 || p.GPS.Satellites != 9 {
		t.Errorf("speed=%d course=%d sats=%d", p.GPS.Speed, p.GPS.Course, p.GPS.Satellites)
	}
}

func TestAltitudeReinterpret(t *testing.T) {
	cases := []struct {
		raw  uint16
		want int16
	}{
		{0xFFFF, -1},
		{0x0001, 1},
		{0x8000, -32768},
		{0x0000, 0},
	}
	for _, c := range cases {
		d := make([]byte, 20)
		d[4] = maskGPS
		binary.BigEndian.PutUint16(d[13:15], c.raw)
		p, _, err := parsePosition(d)
		if err != nil {
			t.Fatal(err)
		}
		if p.GPS.Altitude != c.want {
			t.Errorf("raw %#x: got %d, want %d", c.raw, p.GPS.Altitude, c.want)
		}
	}
}

func TestParsePositionAllBlocks(t *testing.T) {
	d := make([]byte, 80)
	binary.BigEndian.PutUint32(d[0:4], 1700000000)
	d[4] = maskGPS | maskBSID0 | maskBSID1 | maskBSID2 | maskBSS0 | maskBSS1 | maskBSS2
	off := 5
	off += 15 // gps, zeroes decode fine
	// serving cell
	binary.BigEndian.PutUint16(d[off:], 510)
	binary.BigEndian.PutUint16(d[off+2:], 10)
	binary.BigEndian.PutUint16(d[off+4:], 0x1234)
	binary.BigEndian.PutUint32(d[off+6:], 0xABCDEF)
	d[off+10] = 31
	off += 11
	// two neighbor cells
	binary.BigEndian.PutUint16(d[off:], 0x2345)
	binary.BigEndian.PutUint32(d[off+2:], 777)
	d[off+6] = 20
	off += 7
	off += 7
	// wifi access points
	copy(d[off:], []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01})
	d[off+6] = byte(int8(-70))
	off += 7
	off += 7
	off += 7

	p, n, err := parsePosition(d)
	if err != nil {
		t.Fatal(err)
	}
	if n != off {
		t.Errorf("consumed %d bytes, want %d", n, off)
	}
	if p.Cell == nil || p.Cell1 == nil || p.Cell2 == nil || p.Wifi0 == nil || p.Wifi1 == nil || p.Wifi2 == nil {
		t.Fatal("missing sub-records")
	}
	if p.Cell.MCC != 510 || p.Cell.MNC != 10 || p.Cell.LAC != 0x1234 || p.Cell.CID != 0xABCDEF || p.Cell.RxLev != 31 {
		t.Errorf("serving cell %+v", p.Cell)
	}
	if p.Cell1.LAC != 0x2345 || p.Cell1.CI != 777 || p.Cell1.RxLev != 20 {
		t.Errorf("neighbor cell %+v", p.Cell1)
	}
	if p.Wifi0.BSSID != "de:ad:be:ef:00:01" {
		t.Errorf("bssid %q", p.Wifi0.BSSID)
	}
	if p.Wifi0.RSSI != -70 {
		t.Errorf("rssi %d", p.Wifi0.RSSI)
	}
}

func TestParsePositionTruncated(t *testing.T) {
	cases := []struct {
		name string
		d    []byte
	}{
		{"no-time", []byte{0x00, 0x01}},
		{"no-mask", []byte{0x00, 0x00, 0x00, 0x01}},
		{"gps-cut", append([]byte{0, 0, 0, 1, maskGPS}, make([]byte, 10)...)},
		{"cell-cut", append([]byte{0, 0, 0, 1, maskBSID0}, make([]byte, 5)...)},
	}
	for _, c := range cases {
		if _, _, err := parsePosition(c.d); err == nil {
			t.Errorf("%s: no error", c.name)
		}
	}
}
