package utils

import (
	"net"
	"strings"
)

// cgnatBlock is 100.64.0.0/10, used by Carrier Grade NAT, Tailscale and Cloudflare WARP.
var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

var tunnelMarkers = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

// ShouldForceRelay checks if the system is likely behind a restrictive VPN or CGNAT
// and returns true if we should force TURN usage.
func ShouldForceRelay() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		if IsTunnelInterface(iface.Name) {
			return true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if IsCGNAT(ip) {
				return true
			}
		}
	}

	return false
}

// IsTunnelInterface reports whether an interface name looks like a VPN adapter.
func IsTunnelInterface(name string) bool {
	name = strings.ToLower(name)
	for _, marker := range tunnelMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func IsCGNAT(ip net.IP) bool {
	return ip != nil && cgnatBlock.Contains(ip)
}
