package wire

import (
	"net"

	"github.com/beegfs/mgmtd/pkg/types"
)

// LocalNICs builds the NIC list a daemon advertises in its Heartbeat and
// RegisterNode messages: either the explicit --interfaces names, resolved
// to their addresses, or every non-loopback IPv4-capable interface found
// via net.Interfaces() when none are named.
func LocalNICs(names []string) ([]types.NIC, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var nics []types.NIC
	for _, iface := range ifaces {
		if len(wanted) > 0 && !wanted[iface.Name] {
			continue
		}
		if len(wanted) == 0 {
			if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
				continue
			}
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			nics = append(nics, types.NIC{
				Type:    types.NICEthernet,
				Address: ipNet.IP.String(),
				Name:    iface.Name,
			})
			break
		}
	}
	return nics, nil
}
