package network

import (
	"strings"

	"github.com/complykit/ksi-evidence/internal/models"
)

// normalizeAWSRule maps one aws_security_group ingress or egress block into
// the canonical Rule shape. Ports accept numeric or numeric-string values,
// CIDR fields accept a bare string as a single-element set, and the
// security_groups list is merged with source_security_group_id. The derived
// Unrestricted flag is computed here so it can never drift from the fields
// it depends on.
func normalizeAWSRule(cfg map[string]any) models.Rule {
	rule := models.Rule{
		Description:    coerceString(cfg["description"], ""),
		FromPort:       intOrNil(cfg["from_port"]),
		ToPort:         intOrNil(cfg["to_port"]),
		Protocol:       coerceString(cfg["protocol"], "-1"),
		CIDRBlocks:     coerceStringList(cfg["cidr_blocks"]),
		IPv6CIDRBlocks: coerceStringList(cfg["ipv6_cidr_blocks"]),
		SelfReference:  coerceBool(cfg["self"]),
	}

	refs := coerceStringList(cfg["security_groups"])
	if src := coerceString(cfg["source_security_group_id"], ""); src != "" {
		refs = append(refs, src)
	}
	rule.SecurityGroupRefs = refs

	rule.Unrestricted = IsUnrestricted(rule.CIDRBlocks, rule.IPv6CIDRBlocks, rule.FromPort, rule.ToPort, rule.Protocol)
	return rule
}

// azurePortBounds parses an Azure destination_port_range value: "*" means
// all ports, "A-B" a range, a bare number a single port. Unparseable values
// yield nil bounds rather than an error.
func azurePortBounds(portRange string) (*int, *int) {
	if portRange == "*" {
		return intPtr(0), intPtr(65535)
	}
	if strings.Contains(portRange, "-") {
		parts := strings.SplitN(portRange, "-", 2)
		from := intOrNil(parts[0])
		to := intOrNil(parts[1])
		if from == nil || to == nil {
			return nil, nil
		}
		return from, to
	}
	if n := intOrNil(portRange); n != nil {
		return n, n
	}
	return nil, nil
}

// normalizeAzureRule maps one allow-access security_rule block into the
// canonical Rule shape. Callers must have already filtered deny rules and
// resolved direction.
func normalizeAzureRule(cfg map[string]any) models.Rule {
	from, to := azurePortBounds(coerceString(cfg["destination_port_range"], "*"))

	protocol := coerceString(cfg["protocol"], "*")
	if protocol == "*" {
		protocol = "-1"
	}

	var cidrBlocks []string
	switch source := coerceString(cfg["source_address_prefix"], ""); source {
	case "*", "Internet":
		cidrBlocks = []string{"0.0.0.0/0"}
	case "":
	default:
		cidrBlocks = []string{source}
	}
	cidrBlocks = append(cidrBlocks, coerceStringList(cfg["source_address_prefixes"])...)

	rule := models.Rule{
		Description: coerceString(cfg["description"], ""),
		FromPort:    from,
		ToPort:      to,
		Protocol:    protocol,
		CIDRBlocks:  cidrBlocks,
	}
	rule.Unrestricted = IsUnrestricted(rule.CIDRBlocks, nil, rule.FromPort, rule.ToPort, rule.Protocol)
	return rule
}

// gcpPortBounds parses one entry of a GCP allow-block ports list. An empty
// spec means the allow block carried no ports at all: all ports.
func gcpPortBounds(portSpec string) (*int, *int) {
	if portSpec == "" {
		return intPtr(0), intPtr(65535)
	}
	if strings.Contains(portSpec, "-") {
		parts := strings.SplitN(portSpec, "-", 2)
		from := intOrNil(parts[0])
		to := intOrNil(parts[1])
		if from == nil || to == nil {
			return nil, nil
		}
		return from, to
	}
	if n := intOrNil(portSpec); n != nil {
		return n, n
	}
	return nil, nil
}

// normalizeGCPRules fans one google_compute_firewall allow block out into
// canonical Rules: one Rule per port-spec entry, all sharing the firewall's
// CIDR set (source_ranges for ingress, destination_ranges for egress).
func normalizeGCPRules(allow map[string]any, cidrBlocks []string, description string) []models.Rule {
	protocol := coerceString(allow["protocol"], "all")
	if protocol == "all" {
		protocol = "-1"
	}

	portSpecs := coerceStringList(allow["ports"])
	if len(portSpecs) == 0 {
		portSpecs = []string{""}
	}

	rules := make([]models.Rule, 0, len(portSpecs))
	for _, spec := range portSpecs {
		from, to := gcpPortBounds(spec)
		rule := models.Rule{
			Description: description,
			FromPort:    from,
			ToPort:      to,
			Protocol:    protocol,
			CIDRBlocks:  cidrBlocks,
		}
		rule.Unrestricted = IsUnrestricted(rule.CIDRBlocks, nil, rule.FromPort, rule.ToPort, rule.Protocol)
		rules = append(rules, rule)
	}
	return rules
}

func intPtr(n int) *int { return &n }
