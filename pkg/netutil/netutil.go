// Package netutil wraps the raw socket options the exchange's transport
// needs: TCP_NODELAY and SO_REUSEADDR on the order-gateway TCP socket,
// and IP_ADD_MEMBERSHIP / IP_DROP_MEMBERSHIP on the two UDP multicast
// market-data sockets. TCP_NODELAY uses net.TCPConn.SetNoDelay; the
// others are plumbed through golang.org/x/sys/unix since the standard
// library exposes no portable way to set them.
package netutil

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// ListenTCP opens an SO_REUSEADDR listener on addr for the order
// gateway. It does not set TCP_NODELAY on accepted sockets; callers do
// that per connection with SetNoDelay.
func ListenTCP(addr string) (*net.TCPListener, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("netutil: listener for %q is not a *net.TCPListener", addr)
	}
	return tcpLn, nil
}

// DialTCP connects to addr and enables TCP_NODELAY on the resulting
// connection.
func DialTCP(addr string) (*net.TCPConn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	tcpConn := conn.(*net.TCPConn)
	if err := SetNoDelay(tcpConn); err != nil {
		tcpConn.Close()
		return nil, err
	}
	return tcpConn, nil
}

// SetNoDelay enables TCP_NODELAY on conn.
func SetNoDelay(conn *net.TCPConn) error {
	return conn.SetNoDelay(true)
}

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// ListenMulticastUDP opens a UDP socket bound to port on iface and joins
// group via IP_ADD_MEMBERSHIP. iface is an interface name; "" and "lo"
// both leave the choice of interface to the kernel (INADDR_ANY).
func ListenMulticastUDP(iface string, group net.IP, port int) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}
	ifaceIP, err := interfaceIPv4(iface)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := JoinMulticastGroup(conn, group, ifaceIP); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// JoinMulticastGroup joins conn to group on the interface with address
// iface, via IP_ADD_MEMBERSHIP — used by ListenMulticastUDP.
func JoinMulticastGroup(conn *net.UDPConn, group, iface net.IP) error {
	return sockoptIPMreq(conn, group, iface, unix.IP_ADD_MEMBERSHIP)
}

// LeaveMulticastGroup drops conn's membership of group via
// IP_DROP_MEMBERSHIP.
func LeaveMulticastGroup(conn *net.UDPConn, group, iface net.IP) error {
	return sockoptIPMreq(conn, group, iface, unix.IP_DROP_MEMBERSHIP)
}

func sockoptIPMreq(conn *net.UDPConn, group, iface net.IP, opt int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var mreq unix.IPMreq
	g4 := group.To4()
	if g4 == nil {
		return fmt.Errorf("netutil: multicast group %v is not IPv4", group)
	}
	copy(mreq.Multiaddr[:], g4)
	if i4 := iface.To4(); i4 != nil {
		copy(mreq.Interface[:], i4)
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptIPMreq(int(fd), unix.IPPROTO_IP, opt, &mreq)
	})
	if err != nil {
		return err
	}
	return sockErr
}

func interfaceIPv4(name string) (net.IP, error) {
	if name == "" || name == "lo" {
		return net.IPv4zero, nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			if v4 := ipNet.IP.To4(); v4 != nil {
				return v4, nil
			}
		}
	}
	return net.IPv4zero, nil
}

// DialMulticastUDP opens a UDP socket for sending to group:port — used
// by marketdata.Publisher and marketdata.Synthesizer.
func DialMulticastUDP(group net.IP, port int) (*net.UDPConn, error) {
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: group, Port: port})
	if err != nil {
		return nil, err
	}
	return conn, nil
}
