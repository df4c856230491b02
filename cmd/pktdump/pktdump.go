// Command pktdump listens on a UDP port (or reads stdin) and prints the
// decoded LOFAR header of the first N packets, for probing a feed before
// pointing lofarcap at it for real.
package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mugundhan1/lofarcap/packets"
	"github.com/spf13/pflag"
)

func probe(npack int, endpoint string) error {
	fmt.Printf("Probing %s for the first %d packets received...\n", endpoint, npack)
	addr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	buf := make([]byte, 65536)
	for i := 0; i < npack; i++ {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		h, err := packets.Decode(buf[:n])
		if err != nil {
			fmt.Printf("[%d] %d bytes, header decode failed: %v\n", i, n, err)
			continue
		}
		fmt.Printf("[%d] %d bytes, rsp=%d station=%d beammode=%d good=%v packno=%d\n",
			i, n, h.RSPID, h.Station, h.BeamMode, h.Good(), h.PackNo())
	}
	return nil
}

func main() {
	const defaultHost = "localhost"
	const defaultPort = 4000

	npack := pflag.IntP("count", "n", 10, "number of packets to dump")
	port := pflag.IntP("port", "p", defaultPort, "port to monitor")
	pflag.Parse()

	host := defaultHost
	if pflag.NArg() > 0 {
		host = pflag.Arg(0)
		if pieces := strings.Split(host, ":"); len(pieces) > 1 {
			if len(pieces) > 2 {
				fmt.Printf("cannot parse host %q with %d colon separators\n", host, len(pieces)-1)
				return
			}
			p, err := strconv.Atoi(pieces[1])
			if err != nil {
				fmt.Printf("cannot convert port %q to integer\n", pieces[1])
				return
			}
			*port = p
			host = pieces[0]
			if host == "" {
				host = defaultHost
			}
		}
	}

	endpoint := fmt.Sprintf("%s:%d", host, *port)
	if err := probe(*npack, endpoint); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}
