package network

import (
	"strings"

	"github.com/complykit/ksi-evidence/internal/models"
)

// UnrestrictedCIDRs are the CIDR blocks that grant access from the entire
// internet. The same set is consulted for egress rules: 0.0.0.0/0 or ::/0 as
// a destination is exactly what "unrestricted egress" means.
var UnrestrictedCIDRs = map[string]bool{
	"0.0.0.0/0": true,
	"::/0":      true,
}

// allProtocols are the protocol tokens meaning "all protocols"; when one of
// these is present, port bounds are meaningless and ignored.
var allProtocols = map[string]bool{
	"-1":  true,
	"all": true,
}

// SensitivePort pairs a well-known risky port with its service name.
type SensitivePort struct {
	Port    int
	Service string
}

// SensitivePorts is the fixed table of administrative and data-store ports
// that must not be reachable from the open internet. Order is the reporting
// order.
var SensitivePorts = []SensitivePort{
	{22, "SSH"},
	{23, "Telnet"},
	{3389, "RDP"},
	{3306, "MySQL"},
	{5432, "PostgreSQL"},
	{1433, "MSSQL"},
	{1521, "Oracle"},
	{27017, "MongoDB"},
	{6379, "Redis"},
	{9200, "Elasticsearch"},
	{5900, "VNC"},
	{5901, "VNC"},
	{5902, "VNC"},
	{11211, "Memcached"},
	{2379, "etcd"},
	{2380, "etcd"},
}

// openCIDRs returns the rule's CIDRs that intersect the unrestricted set,
// IPv4 first; the IPv6 set is consulted only when no IPv4 CIDR matches.
// Input order is preserved so output stays deterministic.
func openCIDRs(cidrBlocks, ipv6CIDRBlocks []string) []string {
	var hits []string
	for _, c := range cidrBlocks {
		if UnrestrictedCIDRs[c] {
			hits = append(hits, c)
		}
	}
	if len(hits) > 0 {
		return hits
	}
	for _, c := range ipv6CIDRBlocks {
		if UnrestrictedCIDRs[c] {
			hits = append(hits, c)
		}
	}
	return hits
}

// IsUnrestricted reports whether a rule grants open internet access: an
// unrestricted CIDR combined with either a wildcard protocol or a maximal
// port range (0-65535, or -1 on either bound). A rule with an open CIDR but
// a narrow port range is not unrestricted.
func IsUnrestricted(cidrBlocks, ipv6CIDRBlocks []string, fromPort, toPort *int, protocol string) bool {
	if len(openCIDRs(cidrBlocks, ipv6CIDRBlocks)) == 0 {
		return false
	}

	if allProtocols[strings.ToLower(protocol)] {
		return true
	}

	if fromPort != nil && toPort != nil {
		return (*fromPort == 0 && *toPort == 65535) || *fromPort == -1 || *toPort == -1
	}
	return false
}

// SensitivePortExposures returns one exposure record per sensitive-port
// table entry the rule reaches from an unrestricted CIDR. A wildcard
// protocol exposes every entry. When either port bound is absent, exposure
// cannot be determined and nothing is reported, rather than assuming
// exposure.
func SensitivePortExposures(cidrBlocks, ipv6CIDRBlocks []string, fromPort, toPort *int, protocol string) []models.PortExposure {
	open := openCIDRs(cidrBlocks, ipv6CIDRBlocks)
	if len(open) == 0 {
		return nil
	}

	var exposed []models.PortExposure
	if allProtocols[strings.ToLower(protocol)] {
		for _, entry := range SensitivePorts {
			exposed = append(exposed, models.PortExposure{Port: entry.Port, Service: entry.Service, CIDR: open})
		}
		return exposed
	}

	if fromPort == nil || toPort == nil {
		return nil
	}

	for _, entry := range SensitivePorts {
		if *fromPort <= entry.Port && entry.Port <= *toPort {
			exposed = append(exposed, models.PortExposure{Port: entry.Port, Service: entry.Service, CIDR: open})
		}
	}
	return exposed
}
