// Command tunnel is the public rendezvous point for bridges running behind
// NAT. The bridge dials the tunnel port, authenticates with a shared token
// and keeps a yamux session open. Tracker devices connect to the external
// port and each connection is forwarded over one yamux stream, prefixed
// with the device's remote address as a single line.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	yamux "github.com/hashicorp/yamux"

	"nuha.dev/eelink/internal/util"
)

var eaddr = flag.String("eaddr", ":5064", "address for device connections")
var taddr = flag.String("taddr", ":5065", "address for the bridge tunnel connection")
var secret = flag.String("token", "", "token for tunnel auth, generated when empty")
var certfile = flag.String("cert", "", "tls certificate file")
var keyfile = flag.String("key", "", "tls key file")

func main() {
	flag.Parse()
	if *secret == "" {
		*secret = util.GenRandomString(nil, 15)
		log.Printf("generated tunnel token %s", *secret)
	}
	log.Printf("using device addr %s and tunnel addr %s", *eaddr, *taddr)

	for {
		yconn, err := acceptTunnel()
		if err != nil {
			log.Print(err)
			time.Sleep(2 * time.Second)
			continue
		}
		serveSession(yconn)
		time.Sleep(2 * time.Second)
		log.Println("waiting for new tunnel connection")
	}
}

// acceptTunnel listens on the tunnel port until one bridge authenticates.
// The listener is closed once a bridge is accepted, only one bridge is
// served at a time.
func acceptTunnel() (net.Conn, error) {
	var ylistener net.Listener
	var err error
	if *certfile == "" && *keyfile == "" {
		ylistener, err = net.Listen("tcp", *taddr)
	} else {
		cert, cerr := tls.LoadX509KeyPair(*certfile, *keyfile)
		if cerr != nil {
			panic(cerr)
		}
		tc := &tls.Config{Certificates: []tls.Certificate{cert}}
		ylistener, err = tls.Listen("tcp", *taddr, tc)
	}
	if err != nil {
		panic(err)
	}
	defer ylistener.Close()

	for {
		yconn, err := ylistener.Accept()
		if err != nil {
			return nil, err
		}
		log.Printf("tunnel connection from %s", yconn.RemoteAddr())
		token := make([]byte, 20)
		n, rerr := yconn.Read(token)
		if rerr != nil {
			log.Println(rerr)
			yconn.Close()
			continue
		}
		if *secret != string(token[:n]) {
			log.Printf("rejecting tunnel from %s", yconn.RemoteAddr())
			_, _ = yconn.Write([]byte{'-'})
			yconn.Close()
			continue
		}
		_, _ = yconn.Write([]byte{'+'})
		return yconn, nil
	}
}

func serveSession(yconn net.Conn) {
	session, err := yamux.Server(yconn, nil)
	if err != nil {
		log.Printf("error trying to create session : %q", err)
		yconn.Close()
		return
	}
	listener, err := net.Listen("tcp", *eaddr)
	if err != nil {
		panic(err)
	}
	defer func() {
		log.Print("closing device listener")
		listener.Close()
	}()
	go func() {
		// unblock the accept loop when the bridge goes away
		<-session.CloseChan()
		listener.Close()
	}()
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Println(err)
			return
		}
		log.Printf("new connection from %s", conn.RemoteAddr())
		go forward(session, conn)
	}
}

func forward(session *yamux.Session, conn net.Conn) {
	defer conn.Close()
	tstream, err := session.OpenStream()
	if err != nil {
		log.Printf("error trying to open stream : %q", err)
		return
	}
	log.Printf("stream %d for %s", tstream.StreamID(), conn.RemoteAddr())
	c := make(chan error, 1)
	go func() {
		fmt.Fprintf(tstream, "%s\n", conn.RemoteAddr())
		_, cerr := io.Copy(tstream, conn)
		tstream.Close()
		c <- cerr
	}()
	if _, err := io.Copy(conn, tstream); err != nil {
		log.Printf("error copying to %s from stream %d: %q", conn.RemoteAddr(), tstream.StreamID(), err)
	}
	conn.Close()
	<-c
}
