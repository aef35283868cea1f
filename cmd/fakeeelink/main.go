// Command fakeeelink simulates one tracker against a running bridge. It
// logs in, then alternates heartbeats and gps location records, printing
// every ack it gets back.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"log"
	"net"
	"time"
)

var addr = flag.String("addr", "127.0.0.1:5064", "bridge address")
var imei = flag.Uint64("imei", 0x0123456789012345, "imei sent on login")
var interval = flag.Duration("interval", 10*time.Second, "delay between reports")
var count = flag.Int("count", 0, "number of reports to send, 0 runs forever")

var seq uint16

func frame(cmd byte, data []byte) []byte {
	seq++
	p := make([]byte, 7+len(data))
	p[0], p[1], p[2] = 0x67, 0x67, cmd
	binary.BigEndian.PutUint16(p[3:5], uint16(2+len(data)))
	binary.BigEndian.PutUint16(p[5:7], seq)
	copy(p[7:], data)
	return p
}

func loginFrame() []byte {
	data := make([]byte, 13)
	binary.BigEndian.PutUint64(data[0:8], *imei)
	return frame(0x01, data)
}

func heartbeatFrame(status uint16) []byte {
	data := make([]byte, 2)
	binary.BigEndian.PutUint16(data, status)
	return frame(0x03, data)
}

// locationFrame builds one 74-byte record with a gps fix and telemetry,
// the unused tail stays zero.
func locationFrame(lat, lon float64, status uint16) []byte {
	data := make([]byte, 67)
	binary.BigEndian.PutUint32(data[0:4], uint32(time.Now().Unix()))
	data[4] = 0x01
	binary.BigEndian.PutUint32(data[5:9], uint32(int32(lat*1800000)))
	binary.BigEndian.PutUint32(data[9:13], uint32(int32(lon*1800000)))
	binary.BigEndian.PutUint16(data[13:15], 100) // altitude m
	binary.BigEndian.PutUint16(data[15:17], 60)  // speed km/h
	binary.BigEndian.PutUint16(data[17:19], 90)  // course
	data[19] = 9 // satellites
	tele := data[20:52]
	binary.BigEndian.PutUint16(tele[0:2], status)
	binary.BigEndian.PutUint16(tele[2:4], 4100)       // battery mV
	binary.BigEndian.PutUint32(tele[8:12], 12345678)  // mileage m
	binary.BigEndian.PutUint16(tele[16:18], 2500)     // steps
	binary.BigEndian.PutUint16(tele[20:22], 0x1A40)   // 26.25 C
	binary.BigEndian.PutUint16(tele[22:24], 60)       // humidity
	binary.BigEndian.PutUint32(tele[24:28], 800)      // lux
	binary.BigEndian.PutUint32(tele[28:32], 415)      // co2 ppm
	return frame(0x12, data)
}

func send(c net.Conn, p []byte) {
	n, err := c.Write(p)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("sent %d bytes %s", n, hex.EncodeToString(p))
	_ = c.SetReadDeadline(time.Now().Add(40 * time.Second))
	b := make([]byte, 64)
	n, err = c.Read(b)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("ack %s", hex.EncodeToString(b[:n]))
}

func main() {
	flag.Parse()
	c, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("connected to %s as %x", *addr, *imei)

	send(c, loginFrame())

	lat, lon := -6.1751, 106.8650
	status := uint16(0x0205) // gps fixed, engine on, device active
	for i := 0; *count == 0 || i < *count; i++ {
		send(c, heartbeatFrame(status))
		time.Sleep(*interval)
		send(c, locationFrame(lat, lon, status))
		time.Sleep(*interval)
		lat += 0.0005
		lon += 0.0003
	}
	c.Close()
}
