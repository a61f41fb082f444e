package network

import (
	"strings"

	"github.com/complykit/ksi-evidence/internal/models"
)

// sgExtractor builds one SecurityGroup from a declared resource instance.
type sgExtractor func(name string, cfg map[string]any, sourceFile string) models.SecurityGroup

// sgExtractors dispatches on Terraform resource type. Adding a provider
// means adding one entry here; everything downstream works on the canonical
// shape.
var sgExtractors = map[string]sgExtractor{
	"aws_security_group":             extractAWSSecurityGroup,
	"azurerm_network_security_group": extractAzureNSG,
	"google_compute_firewall":        extractGCPFirewall,
}

// resourceInstances iterates the instances of one resource type inside a
// parsed file. parsed["resource"] is a sequence of single-type mappings,
// each mapping a type to {name: config}.
func resourceInstances(parsed map[string]any, resourceType string) map[string]map[string]any {
	out := make(map[string]map[string]any)
	resources, _ := parsed["resource"].([]any)
	for _, entry := range resources {
		block, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		instances, ok := block[resourceType].(map[string]any)
		if !ok {
			continue
		}
		for name, cfg := range instances {
			if m, ok := cfg.(map[string]any); ok {
				out[name] = m
			}
		}
	}
	return out
}

// ExtractSecurityGroups builds one canonical SecurityGroup per declared
// security-group-like resource in a parsed file, across all registered
// provider types.
func ExtractSecurityGroups(parsed map[string]any, sourceFile string) []models.SecurityGroup {
	var groups []models.SecurityGroup
	for _, resourceType := range []string{
		"aws_security_group",
		"azurerm_network_security_group",
		"google_compute_firewall",
	} {
		extract := sgExtractors[resourceType]
		for name, cfg := range resourceInstances(parsed, resourceType) {
			groups = append(groups, extract(name, cfg, sourceFile))
		}
	}
	return groups
}

func extractAWSSecurityGroup(name string, cfg map[string]any, sourceFile string) models.SecurityGroup {
	sg := models.SecurityGroup{
		ResourceAddress: "aws_security_group." + name,
		Name:            coerceString(cfg["name"], ""),
		Description:     coerceString(cfg["description"], ""),
		VPCRef:          coerceString(cfg["vpc_id"], ""),
		SourceFile:      sourceFile,
	}

	for _, block := range blockList(cfg["ingress"]) {
		rule := normalizeAWSRule(block)
		sg.SensitivePortsExposed = append(sg.SensitivePortsExposed,
			SensitivePortExposures(rule.CIDRBlocks, rule.IPv6CIDRBlocks, rule.FromPort, rule.ToPort, rule.Protocol)...)
		sg.IngressRules = append(sg.IngressRules, rule)
	}
	for _, block := range blockList(cfg["egress"]) {
		sg.EgressRules = append(sg.EgressRules, normalizeAWSRule(block))
	}

	finalizeDerivedFlags(&sg)
	return sg
}

func extractAzureNSG(name string, cfg map[string]any, sourceFile string) models.SecurityGroup {
	sg := models.SecurityGroup{
		ResourceAddress: "azurerm_network_security_group." + name,
		Name:            coerceString(cfg["name"], ""),
		SourceFile:      sourceFile,
	}

	for _, block := range blockList(cfg["security_rule"]) {
		// Deny rules grant nothing and do not count as explicit rules.
		if !strings.EqualFold(coerceString(block["access"], ""), "allow") {
			continue
		}
		rule := normalizeAzureRule(block)
		if strings.EqualFold(coerceString(block["direction"], ""), "inbound") {
			sg.SensitivePortsExposed = append(sg.SensitivePortsExposed,
				SensitivePortExposures(rule.CIDRBlocks, nil, rule.FromPort, rule.ToPort, rule.Protocol)...)
			sg.IngressRules = append(sg.IngressRules, rule)
		} else {
			sg.EgressRules = append(sg.EgressRules, rule)
		}
	}

	finalizeDerivedFlags(&sg)
	return sg
}

func extractGCPFirewall(name string, cfg map[string]any, sourceFile string) models.SecurityGroup {
	sg := models.SecurityGroup{
		ResourceAddress: "google_compute_firewall." + name,
		Name:            coerceString(cfg["name"], ""),
		SourceFile:      sourceFile,
	}

	direction := strings.ToUpper(coerceString(cfg["direction"], "INGRESS"))
	ingress := direction == "INGRESS"

	// One CIDR set per firewall resource, shared by every fanned-out rule.
	var cidrBlocks []string
	if ingress {
		cidrBlocks = coerceStringList(cfg["source_ranges"])
	} else {
		cidrBlocks = coerceStringList(cfg["destination_ranges"])
	}
	description := coerceString(cfg["description"], "")

	for _, allow := range blockList(cfg["allow"]) {
		for _, rule := range normalizeGCPRules(allow, cidrBlocks, description) {
			if ingress {
				sg.SensitivePortsExposed = append(sg.SensitivePortsExposed,
					SensitivePortExposures(rule.CIDRBlocks, nil, rule.FromPort, rule.ToPort, rule.Protocol)...)
				sg.IngressRules = append(sg.IngressRules, rule)
			} else {
				sg.EgressRules = append(sg.EgressRules, rule)
			}
		}
	}

	finalizeDerivedFlags(&sg)
	return sg
}

// finalizeDerivedFlags computes the four OR-reduction booleans from the
// rule lists. Called exactly once, after all rules are attached.
func finalizeDerivedFlags(sg *models.SecurityGroup) {
	sg.HasExplicitIngress = len(sg.IngressRules) > 0
	sg.HasExplicitEgress = len(sg.EgressRules) > 0
	for _, r := range sg.IngressRules {
		if r.Unrestricted {
			sg.HasUnrestrictedIngress = true
			break
		}
	}
	for _, r := range sg.EgressRules {
		if r.Unrestricted {
			sg.HasUnrestrictedEgress = true
			break
		}
	}
}

// ExtractVPCs collects VPC-like declarations across providers.
func ExtractVPCs(parsed map[string]any, sourceFile string) []models.VPC {
	var vpcs []models.VPC

	for name, cfg := range resourceInstances(parsed, "aws_vpc") {
		vpcs = append(vpcs, models.VPC{
			ResourceAddress: "aws_vpc." + name,
			CIDRBlock:       coerceString(cfg["cidr_block"], ""),
			SourceFile:      sourceFile,
		})
	}

	for name, cfg := range resourceInstances(parsed, "azurerm_virtual_network") {
		var cidr string
		if space := coerceStringList(cfg["address_space"]); len(space) > 0 {
			cidr = space[0]
		}
		vpcs = append(vpcs, models.VPC{
			ResourceAddress: "azurerm_virtual_network." + name,
			CIDRBlock:       cidr,
			SourceFile:      sourceFile,
		})
	}

	for name := range resourceInstances(parsed, "google_compute_network") {
		// GCP VPC networks carry no single CIDR.
		vpcs = append(vpcs, models.VPC{
			ResourceAddress: "google_compute_network." + name,
			SourceFile:      sourceFile,
		})
	}

	return vpcs
}

// ExtractSubnets collects aws_subnet declarations.
func ExtractSubnets(parsed map[string]any, sourceFile string) []models.Subnet {
	var subnets []models.Subnet
	for name, cfg := range resourceInstances(parsed, "aws_subnet") {
		subnets = append(subnets, models.Subnet{
			ResourceAddress:  "aws_subnet." + name,
			VPCRef:           coerceString(cfg["vpc_id"], ""),
			CIDRBlock:        coerceString(cfg["cidr_block"], ""),
			IsPublic:         coerceBool(cfg["map_public_ip_on_launch"]),
			AvailabilityZone: coerceString(cfg["availability_zone"], ""),
			SourceFile:       sourceFile,
		})
	}
	return subnets
}

// routeTargetFields maps route attributes to target types, checked in
// priority order.
var routeTargetFields = []struct {
	field      string
	targetType string
}{
	{"gateway_id", "internet_gateway"},
	{"nat_gateway_id", "nat_gateway"},
	{"vpc_peering_connection_id", "vpc_peering"},
	{"transit_gateway_id", "transit_gateway"},
	{"network_interface_id", "network_interface"},
}

// ExtractRouteTables collects aws_route_table declarations with their
// route blocks.
func ExtractRouteTables(parsed map[string]any, sourceFile string) []models.RouteTable {
	var tables []models.RouteTable
	for name, cfg := range resourceInstances(parsed, "aws_route_table") {
		table := models.RouteTable{
			ResourceAddress: "aws_route_table." + name,
			VPCRef:          coerceString(cfg["vpc_id"], ""),
			SourceFile:      sourceFile,
		}

		for _, routeCfg := range blockList(cfg["route"]) {
			destination := coerceString(routeCfg["cidr_block"], "")
			if destination == "" {
				destination = coerceString(routeCfg["destination_cidr_block"], "")
			}
			if destination == "" {
				continue
			}

			route := models.Route{Destination: destination, TargetType: "unknown"}
			for _, target := range routeTargetFields {
				if ref := coerceString(routeCfg[target.field], ""); ref != "" {
					route.TargetType = target.targetType
					route.TargetRef = ref
					break
				}
			}
			table.Routes = append(table.Routes, route)
		}

		tables = append(tables, table)
	}
	return tables
}

// ExtractInternetGateways collects aws_internet_gateway declarations.
func ExtractInternetGateways(parsed map[string]any, sourceFile string) []models.InternetGateway {
	var gateways []models.InternetGateway
	for name, cfg := range resourceInstances(parsed, "aws_internet_gateway") {
		gateways = append(gateways, models.InternetGateway{
			ResourceAddress: "aws_internet_gateway." + name,
			VPCRef:          coerceString(cfg["vpc_id"], ""),
			SourceFile:      sourceFile,
		})
	}
	return gateways
}

// ExtractNATGateways collects aws_nat_gateway declarations.
func ExtractNATGateways(parsed map[string]any, sourceFile string) []models.NATGateway {
	var gateways []models.NATGateway
	for name, cfg := range resourceInstances(parsed, "aws_nat_gateway") {
		gateways = append(gateways, models.NATGateway{
			ResourceAddress: "aws_nat_gateway." + name,
			SubnetRef:       coerceString(cfg["subnet_id"], ""),
			SourceFile:      sourceFile,
		})
	}
	return gateways
}

// ExtractLoadBalancers collects aws_lb and legacy aws_alb declarations.
func ExtractLoadBalancers(parsed map[string]any, sourceFile string) []models.LoadBalancer {
	var lbs []models.LoadBalancer

	for name, cfg := range resourceInstances(parsed, "aws_lb") {
		lbs = append(lbs, models.LoadBalancer{
			ResourceAddress:   "aws_lb." + name,
			Type:              coerceString(cfg["load_balancer_type"], "application"),
			IsInternal:        coerceBool(cfg["internal"]),
			SecurityGroupRefs: coerceStringList(cfg["security_groups"]),
			SubnetRefs:        coerceStringList(cfg["subnets"]),
			SourceFile:        sourceFile,
		})
	}

	for name, cfg := range resourceInstances(parsed, "aws_alb") {
		lbs = append(lbs, models.LoadBalancer{
			ResourceAddress:   "aws_alb." + name,
			Type:              "application",
			IsInternal:        coerceBool(cfg["internal"]),
			SecurityGroupRefs: coerceStringList(cfg["security_groups"]),
			SourceFile:        sourceFile,
		})
	}

	return lbs
}
