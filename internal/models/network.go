package models

// Direction identifies which way a security rule applies.
type Direction string

const (
	DirectionIngress Direction = "ingress"
	DirectionEgress  Direction = "egress"
)

// Rule is one canonical ingress or egress rule, normalized from any of the
// supported provider grammars (AWS security group blocks, Azure NSG
// security_rule blocks, GCP firewall allow blocks).
//
// FromPort/ToPort are nil when the source block does not specify them, which
// is distinct from -1 ("all ports"). Unrestricted is derived from the other
// fields at construction time and is never set independently.
type Rule struct {
	Description       string   `json:"description,omitempty"`
	FromPort          *int     `json:"from_port"`
	ToPort            *int     `json:"to_port"`
	Protocol          string   `json:"protocol"`
	CIDRBlocks        []string `json:"cidr_blocks"`
	IPv6CIDRBlocks    []string `json:"ipv6_cidr_blocks"`
	SecurityGroupRefs []string `json:"security_group_refs"`
	SelfReference     bool     `json:"self_reference"`
	Unrestricted      bool     `json:"is_unrestricted"`
}

// PortExposure records one sensitive port reachable from an unrestricted CIDR.
type PortExposure struct {
	Port    int      `json:"port"`
	Service string   `json:"service"`
	CIDR    []string `json:"cidr"`
}

// SecurityGroup is one declared security-group-like resource
// (aws_security_group, azurerm_network_security_group, or
// google_compute_firewall). Constructed once during extraction and immutable
// afterwards; groups are never merged across files even when names collide.
type SecurityGroup struct {
	// ResourceAddress is the provider-prefixed unique key,
	// e.g. "aws_security_group.web".
	ResourceAddress string `json:"resource_address"`

	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	// VPCRef is the VPC/network reference when the provider declares one.
	VPCRef string `json:"vpc_id,omitempty"`

	SourceFile string `json:"source_file"`
	SourceLine int    `json:"source_line,omitempty"`

	IngressRules []Rule `json:"ingress_rules"`
	EgressRules  []Rule `json:"egress_rules"`

	HasExplicitIngress     bool `json:"has_explicit_ingress"`
	HasExplicitEgress      bool `json:"has_explicit_egress"`
	HasUnrestrictedIngress bool `json:"has_unrestricted_ingress"`
	HasUnrestrictedEgress  bool `json:"has_unrestricted_egress"`

	// SensitivePortsExposed accumulates every exposure record from every
	// ingress rule. Egress is never checked; only inbound exposure answers
	// "is this port reachable from the internet".
	SensitivePortsExposed []PortExposure `json:"sensitive_ports_exposed"`
}

// VPC is a declared VPC / virtual network.
type VPC struct {
	ResourceAddress string `json:"resource_address"`
	CIDRBlock       string `json:"cidr_block,omitempty"`
	SourceFile      string `json:"source_file"`
}

// Subnet is a declared subnet.
type Subnet struct {
	ResourceAddress  string `json:"resource_address"`
	VPCRef           string `json:"vpc_ref,omitempty"`
	CIDRBlock        string `json:"cidr_block,omitempty"`
	IsPublic         bool   `json:"is_public"`
	AvailabilityZone string `json:"availability_zone,omitempty"`
	SourceFile       string `json:"source_file"`
}

// Route is a single route inside a route table. TargetType is one of
// internet_gateway, nat_gateway, vpc_peering, transit_gateway,
// network_interface, or unknown.
type Route struct {
	Destination string `json:"destination"`
	TargetType  string `json:"target_type"`
	TargetRef   string `json:"target_ref,omitempty"`
}

// RouteTable is a declared route table with its routes.
type RouteTable struct {
	ResourceAddress string  `json:"resource_address"`
	VPCRef          string  `json:"vpc_ref,omitempty"`
	Routes          []Route `json:"routes"`
	SourceFile      string  `json:"source_file"`
}

// InternetGateway is a declared internet gateway.
type InternetGateway struct {
	ResourceAddress string `json:"resource_address"`
	VPCRef          string `json:"vpc_ref,omitempty"`
	SourceFile      string `json:"source_file"`
}

// NATGateway is a declared NAT gateway.
type NATGateway struct {
	ResourceAddress string `json:"resource_address"`
	SubnetRef       string `json:"subnet_ref,omitempty"`
	SourceFile      string `json:"source_file"`
}

// LoadBalancer is a declared load balancer (aws_lb or the legacy aws_alb).
type LoadBalancer struct {
	ResourceAddress   string   `json:"resource_address"`
	Type              string   `json:"type"`
	IsInternal        bool     `json:"is_internal"`
	SecurityGroupRefs []string `json:"security_group_refs"`
	SubnetRefs        []string `json:"subnet_refs,omitempty"`
	SourceFile        string   `json:"source_file"`
}

// NetworkInventory is the aggregate declared-state snapshot for one run.
// List order carries no semantic meaning, but lists are sorted by resource
// address (and SourceFiles by path) so evidence hashing is reproducible.
type NetworkInventory struct {
	SchemaVersion    string            `json:"schema_version"`
	ExtractedAt      string            `json:"extracted_at"`
	SourceFiles      []string          `json:"source_files"`
	SecurityGroups   []SecurityGroup   `json:"security_groups"`
	VPCs             []VPC             `json:"vpcs"`
	Subnets          []Subnet          `json:"subnets"`
	RouteTables      []RouteTable      `json:"route_tables"`
	InternetGateways []InternetGateway `json:"internet_gateways"`
	NATGateways      []NATGateway      `json:"nat_gateways"`
	LoadBalancers    []LoadBalancer    `json:"load_balancers"`
}
