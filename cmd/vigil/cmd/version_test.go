package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilfs/vigil/pkg/version"
)

func TestVersionCmd_FullOutput(t *testing.T) {
	// Given: the version subcommand

	// When: running it without flags
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	err := cmd.Execute()

	// Then: the full build string should appear
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "vigil")
	assert.Contains(t, output, "commit:")
	assert.Contains(t, output, "go:")
}

func TestVersionCmd_Short(t *testing.T) {
	// Given: the version subcommand

	// When: asking for the short form
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version", "--short"})

	err := cmd.Execute()

	// Then: only the bare version should print
	require.NoError(t, err)
	assert.Equal(t, version.Short()+"\n", buf.String())
}

func TestVersionCmd_JSON(t *testing.T) {
	// Given: the version subcommand

	// When: asking for JSON
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version", "--json"})

	err := cmd.Execute()

	// Then: the document should carry the build fields
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Contains(t, doc, "version")
	assert.Contains(t, doc, "commit")
	assert.Contains(t, doc, "go_version")
}
