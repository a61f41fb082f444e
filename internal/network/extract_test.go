package network

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complykit/ksi-evidence/internal/hclread"
	"github.com/complykit/ksi-evidence/internal/models"
)

func parseHCL(t *testing.T, src string) map[string]any {
	t.Helper()
	parsed, err := hclread.Parse([]byte(src), "test.tf")
	require.NoError(t, err)
	return parsed
}

func TestExtractAWSSecurityGroup(t *testing.T) {
	parsed := parseHCL(t, `
resource "aws_security_group" "web" {
  name        = "web-sg"
  description = "web tier"
  vpc_id      = aws_vpc.main.id

  ingress {
    description = "ssh from anywhere"
    from_port   = 22
    to_port     = 22
    protocol    = "tcp"
    cidr_blocks = ["0.0.0.0/0"]
  }

  ingress {
    from_port   = 443
    to_port     = 443
    protocol    = "tcp"
    cidr_blocks = ["10.0.0.0/8"]
  }

  egress {
    from_port   = 0
    to_port     = 0
    protocol    = "-1"
    cidr_blocks = ["0.0.0.0/0"]
  }
}
`)

	groups := ExtractSecurityGroups(parsed, "test.tf")
	require.Len(t, groups, 1)

	sg := groups[0]
	assert.Equal(t, "aws_security_group.web", sg.ResourceAddress)
	assert.Equal(t, "web-sg", sg.Name)
	assert.Equal(t, "aws_vpc.main.id", sg.VPCRef)
	assert.Equal(t, "test.tf", sg.SourceFile)

	require.Len(t, sg.IngressRules, 2)
	require.Len(t, sg.EgressRules, 1)
	assert.True(t, sg.HasExplicitIngress)
	assert.True(t, sg.HasExplicitEgress)
	assert.False(t, sg.HasUnrestrictedIngress, "narrow port range is not unrestricted")
	assert.True(t, sg.HasUnrestrictedEgress)

	require.Len(t, sg.SensitivePortsExposed, 1)
	assert.Equal(t, 22, sg.SensitivePortsExposed[0].Port)
	assert.Equal(t, "SSH", sg.SensitivePortsExposed[0].Service)
	assert.Equal(t, []string{"0.0.0.0/0"}, sg.SensitivePortsExposed[0].CIDR)
}

func TestExtractAzureNSG(t *testing.T) {
	parsed := parseHCL(t, `
resource "azurerm_network_security_group" "app" {
  name = "app-nsg"

  security_rule {
    name                   = "allow-rdp"
    access                 = "Allow"
    direction              = "Inbound"
    protocol               = "Tcp"
    destination_port_range = "3389"
    source_address_prefix  = "*"
  }

  security_rule {
    name                   = "deny-all"
    access                 = "Deny"
    direction              = "Inbound"
    protocol               = "*"
    destination_port_range = "*"
    source_address_prefix  = "*"
  }

  security_rule {
    name                   = "allow-out"
    access                 = "Allow"
    direction              = "Outbound"
    protocol               = "*"
    destination_port_range = "*"
    source_address_prefix  = "*"
  }
}
`)

	groups := ExtractSecurityGroups(parsed, "nsg.tf")
	require.Len(t, groups, 1)

	sg := groups[0]
	assert.Equal(t, "azurerm_network_security_group.app", sg.ResourceAddress)

	// The deny rule contributes nothing.
	require.Len(t, sg.IngressRules, 1)
	require.Len(t, sg.EgressRules, 1)

	require.Len(t, sg.SensitivePortsExposed, 1)
	assert.Equal(t, 3389, sg.SensitivePortsExposed[0].Port)
	assert.Equal(t, "RDP", sg.SensitivePortsExposed[0].Service)
	assert.Equal(t, []string{"0.0.0.0/0"}, sg.SensitivePortsExposed[0].CIDR)

	assert.True(t, sg.HasUnrestrictedEgress)
	assert.False(t, sg.HasUnrestrictedIngress)
}

func TestExtractGCPFirewall(t *testing.T) {
	parsed := parseHCL(t, `
resource "google_compute_firewall" "db" {
  name          = "db-fw"
  network       = google_compute_network.main.name
  source_ranges = ["0.0.0.0/0"]

  allow {
    protocol = "tcp"
    ports    = ["5432", "6379-6380"]
  }
}
`)

	groups := ExtractSecurityGroups(parsed, "fw.tf")
	require.Len(t, groups, 1)

	sg := groups[0]
	assert.Equal(t, "google_compute_firewall.db", sg.ResourceAddress)

	// One rule per ports entry.
	require.Len(t, sg.IngressRules, 2)

	ports := []int{}
	for _, e := range sg.SensitivePortsExposed {
		ports = append(ports, e.Port)
	}
	sort.Ints(ports)
	assert.Equal(t, []int{5432, 6379}, ports)
}

func TestExtractGCPFirewallEgressDirection(t *testing.T) {
	parsed := parseHCL(t, `
resource "google_compute_firewall" "out" {
  name               = "out-fw"
  direction          = "EGRESS"
  destination_ranges = ["0.0.0.0/0"]

  allow {
    protocol = "all"
  }
}
`)

	groups := ExtractSecurityGroups(parsed, "fw.tf")
	require.Len(t, groups, 1)

	sg := groups[0]
	assert.Empty(t, sg.IngressRules)
	require.Len(t, sg.EgressRules, 1)
	assert.True(t, sg.HasUnrestrictedEgress)
	assert.Empty(t, sg.SensitivePortsExposed, "egress rules never count as exposure")
}

func TestExtractVPCs(t *testing.T) {
	parsed := parseHCL(t, `
resource "aws_vpc" "main" {
  cidr_block = "10.0.0.0/16"
}

resource "azurerm_virtual_network" "vnet" {
  address_space = ["10.1.0.0/16", "10.2.0.0/16"]
}

resource "google_compute_network" "net" {
  auto_create_subnetworks = false
}
`)

	vpcs := ExtractVPCs(parsed, "vpc.tf")
	require.Len(t, vpcs, 3)

	byAddr := map[string]models.VPC{}
	for _, v := range vpcs {
		byAddr[v.ResourceAddress] = v
	}
	assert.Equal(t, "10.0.0.0/16", byAddr["aws_vpc.main"].CIDRBlock)
	assert.Equal(t, "10.1.0.0/16", byAddr["azurerm_virtual_network.vnet"].CIDRBlock)
	assert.Empty(t, byAddr["google_compute_network.net"].CIDRBlock)
}

func TestExtractSubnets(t *testing.T) {
	parsed := parseHCL(t, `
resource "aws_subnet" "public" {
  vpc_id                  = aws_vpc.main.id
  cidr_block              = "10.0.1.0/24"
  map_public_ip_on_launch = true
  availability_zone       = "us-east-1a"
}

resource "aws_subnet" "private" {
  vpc_id     = aws_vpc.main.id
  cidr_block = "10.0.2.0/24"
}
`)

	subnets := ExtractSubnets(parsed, "subnets.tf")
	require.Len(t, subnets, 2)

	byAddr := map[string]models.Subnet{}
	for _, s := range subnets {
		byAddr[s.ResourceAddress] = s
	}
	assert.True(t, byAddr["aws_subnet.public"].IsPublic)
	assert.Equal(t, "us-east-1a", byAddr["aws_subnet.public"].AvailabilityZone)
	assert.False(t, byAddr["aws_subnet.private"].IsPublic)
}

func TestExtractRouteTables(t *testing.T) {
	parsed := parseHCL(t, `
resource "aws_route_table" "public" {
  vpc_id = aws_vpc.main.id

  route {
    cidr_block = "0.0.0.0/0"
    gateway_id = aws_internet_gateway.gw.id
  }

  route {
    cidr_block     = "10.5.0.0/16"
    nat_gateway_id = aws_nat_gateway.nat.id
  }

  route {
    cidr_block = "192.168.0.0/16"
  }

  route {
    gateway_id = aws_internet_gateway.gw.id
  }
}
`)

	tables := ExtractRouteTables(parsed, "routes.tf")
	require.Len(t, tables, 1)

	// The destination-less route is dropped.
	routes := tables[0].Routes
	require.Len(t, routes, 3)
	assert.Equal(t, "internet_gateway", routes[0].TargetType)
	assert.Equal(t, "nat_gateway", routes[1].TargetType)
	assert.Equal(t, "unknown", routes[2].TargetType)
	assert.Empty(t, routes[2].TargetRef)
}

func TestExtractGatewaysAndLoadBalancers(t *testing.T) {
	parsed := parseHCL(t, `
resource "aws_internet_gateway" "gw" {
  vpc_id = aws_vpc.main.id
}

resource "aws_nat_gateway" "nat" {
  subnet_id = aws_subnet.public.id
}

resource "aws_lb" "api" {
  internal        = false
  security_groups = [aws_security_group.web.id]
}

resource "aws_lb" "internal_nlb" {
  load_balancer_type = "network"
  internal           = true
}

resource "aws_alb" "legacy" {
  internal = false
}
`)

	igws := ExtractInternetGateways(parsed, "infra.tf")
	require.Len(t, igws, 1)
	assert.Equal(t, "aws_internet_gateway.gw", igws[0].ResourceAddress)

	nats := ExtractNATGateways(parsed, "infra.tf")
	require.Len(t, nats, 1)
	assert.Equal(t, "aws_subnet.public.id", nats[0].SubnetRef)

	lbs := ExtractLoadBalancers(parsed, "infra.tf")
	require.Len(t, lbs, 3)

	byAddr := map[string]models.LoadBalancer{}
	for _, lb := range lbs {
		byAddr[lb.ResourceAddress] = lb
	}
	assert.Equal(t, "application", byAddr["aws_lb.api"].Type, "aws_lb defaults to application")
	assert.Equal(t, "network", byAddr["aws_lb.internal_nlb"].Type)
	assert.True(t, byAddr["aws_lb.internal_nlb"].IsInternal)
	assert.Equal(t, "application", byAddr["aws_alb.legacy"].Type)
}
