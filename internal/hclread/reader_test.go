package hclread

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResourceBlock(t *testing.T) {
	parsed, err := Parse([]byte(`
resource "aws_security_group" "web" {
  name = "web-sg"

  ingress {
    from_port   = 22
    to_port     = 22
    protocol    = "tcp"
    cidr_blocks = ["0.0.0.0/0"]
  }
}
`), "test.tf")
	require.NoError(t, err)

	resources, ok := parsed["resource"].([]any)
	require.True(t, ok)
	require.Len(t, resources, 1)

	block := resources[0].(map[string]any)
	instances := block["aws_security_group"].(map[string]any)
	cfg := instances["web"].(map[string]any)
	assert.Equal(t, "web-sg", cfg["name"])

	ingress := cfg["ingress"].(map[string]any)
	assert.Equal(t, 22, ingress["from_port"])
	assert.Equal(t, "tcp", ingress["protocol"])
	assert.Equal(t, []any{"0.0.0.0/0"}, ingress["cidr_blocks"])
}

func TestParseRepeatedBlocksBecomeList(t *testing.T) {
	parsed, err := Parse([]byte(`
resource "aws_security_group" "web" {
  ingress {
    from_port = 80
  }
  ingress {
    from_port = 443
  }
}
`), "test.tf")
	require.NoError(t, err)

	resources := parsed["resource"].([]any)
	cfg := resources[0].(map[string]any)["aws_security_group"].(map[string]any)["web"].(map[string]any)

	ingress, ok := cfg["ingress"].([]any)
	require.True(t, ok)
	require.Len(t, ingress, 2)
	assert.Equal(t, 80, ingress[0].(map[string]any)["from_port"])
	assert.Equal(t, 443, ingress[1].(map[string]any)["from_port"])
}

func TestParseTraversalsRenderAsText(t *testing.T) {
	parsed, err := Parse([]byte(`
resource "aws_subnet" "a" {
  vpc_id = aws_vpc.main.id
  tags   = { Name = "subnet-${var.env}" }
}
`), "test.tf")
	require.NoError(t, err)

	resources := parsed["resource"].([]any)
	cfg := resources[0].(map[string]any)["aws_subnet"].(map[string]any)["a"].(map[string]any)

	assert.Equal(t, "aws_vpc.main.id", cfg["vpc_id"])
	tags := cfg["tags"].(map[string]any)
	assert.Equal(t, "subnet-var.env", tags["Name"])
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte(`resource "x" {{{`), "bad.tf")
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.tf")
	require.NoError(t, os.WriteFile(path, []byte(`variable "env" { default = "dev" }`), 0o644))

	parsed, err := ParseFile(path)
	require.NoError(t, err)
	assert.Contains(t, parsed, "variable")

	_, err = ParseFile(filepath.Join(dir, "missing.tf"))
	assert.Error(t, err)
}
