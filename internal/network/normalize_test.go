package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAWSRule(t *testing.T) {
	rule := normalizeAWSRule(map[string]any{
		"description":              "app tier",
		"from_port":                443,
		"to_port":                  443,
		"protocol":                 "tcp",
		"cidr_blocks":              []any{"10.0.0.0/8"},
		"security_groups":          []any{"sg-1"},
		"source_security_group_id": "sg-2",
		"self":                     true,
	})

	assert.Equal(t, "app tier", rule.Description)
	require.NotNil(t, rule.FromPort)
	assert.Equal(t, 443, *rule.FromPort)
	assert.Equal(t, "tcp", rule.Protocol)
	assert.Equal(t, []string{"sg-1", "sg-2"}, rule.SecurityGroupRefs)
	assert.True(t, rule.SelfReference)
	assert.False(t, rule.Unrestricted)
}

func TestNormalizeAWSRuleDefaults(t *testing.T) {
	rule := normalizeAWSRule(map[string]any{
		"cidr_blocks": "0.0.0.0/0",
	})

	// Missing protocol means all protocols; a bare CIDR string is a
	// single-element set.
	assert.Equal(t, "-1", rule.Protocol)
	assert.Equal(t, []string{"0.0.0.0/0"}, rule.CIDRBlocks)
	assert.Nil(t, rule.FromPort)
	assert.True(t, rule.Unrestricted)
}

func TestNormalizeAWSRuleStringPorts(t *testing.T) {
	rule := normalizeAWSRule(map[string]any{
		"from_port": "22",
		"to_port":   "22",
		"protocol":  "tcp",
	})

	require.NotNil(t, rule.FromPort)
	require.NotNil(t, rule.ToPort)
	assert.Equal(t, 22, *rule.FromPort)
	assert.Equal(t, 22, *rule.ToPort)
}

func TestAzurePortBounds(t *testing.T) {
	tests := []struct {
		in       string
		from, to any
	}{
		{"*", 0, 65535},
		{"22", 22, 22},
		{"1000-2000", 1000, 2000},
		{"not-a-port", nil, nil},
	}
	for _, tt := range tests {
		from, to := azurePortBounds(tt.in)
		if tt.from == nil {
			assert.Nil(t, from, tt.in)
			assert.Nil(t, to, tt.in)
			continue
		}
		require.NotNil(t, from, tt.in)
		require.NotNil(t, to, tt.in)
		assert.Equal(t, tt.from, *from, tt.in)
		assert.Equal(t, tt.to, *to, tt.in)
	}
}

func TestNormalizeAzureRule(t *testing.T) {
	rule := normalizeAzureRule(map[string]any{
		"protocol":               "*",
		"destination_port_range": "*",
		"source_address_prefix":  "Internet",
	})

	assert.Equal(t, "-1", rule.Protocol)
	assert.Equal(t, []string{"0.0.0.0/0"}, rule.CIDRBlocks)
	assert.True(t, rule.Unrestricted)
}

func TestNormalizeAzureRulePrefixList(t *testing.T) {
	rule := normalizeAzureRule(map[string]any{
		"protocol":                "Tcp",
		"destination_port_range":  "443",
		"source_address_prefixes": []any{"10.0.0.0/8", "172.16.0.0/12"},
	})

	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12"}, rule.CIDRBlocks)
	assert.False(t, rule.Unrestricted)
}

func TestGCPPortBounds(t *testing.T) {
	from, to := gcpPortBounds("")
	require.NotNil(t, from)
	assert.Equal(t, 0, *from)
	assert.Equal(t, 65535, *to)

	from, to = gcpPortBounds("8080")
	require.NotNil(t, from)
	assert.Equal(t, 8080, *from)
	assert.Equal(t, 8080, *to)

	from, to = gcpPortBounds("5900-5902")
	require.NotNil(t, from)
	assert.Equal(t, 5900, *from)
	assert.Equal(t, 5902, *to)
}

func TestNormalizeGCPRulesFanOut(t *testing.T) {
	rules := normalizeGCPRules(
		map[string]any{"protocol": "tcp", "ports": []any{"22", "80-90"}},
		[]string{"0.0.0.0/0"},
		"fw description",
	)

	require.Len(t, rules, 2)
	assert.Equal(t, 22, *rules[0].FromPort)
	assert.Equal(t, 80, *rules[1].FromPort)
	assert.Equal(t, 90, *rules[1].ToPort)
	for _, r := range rules {
		assert.Equal(t, "fw description", r.Description)
		assert.Equal(t, []string{"0.0.0.0/0"}, r.CIDRBlocks)
	}
}

func TestNormalizeGCPRulesNoPorts(t *testing.T) {
	rules := normalizeGCPRules(map[string]any{"protocol": "all"}, []string{"0.0.0.0/0"}, "")

	require.Len(t, rules, 1)
	assert.Equal(t, "-1", rules[0].Protocol)
	assert.True(t, rules[0].Unrestricted)
}
