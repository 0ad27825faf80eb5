package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/types"
	"github.com/loomhq/loom/workflow"
)

const greetYAML = `
variables:
  tone: friendly
nodes:
  - type: Standard
    endpoint: main
    prompt: "Say hello in a {tone} tone"
`

func TestRegistryLoadsDefinition(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "greet.yaml", greetYAML)

	r := NewRegistry(dir, nil)
	def, err := r.Load("greet")
	require.NoError(t, err)

	// Name defaults to the file name when the definition omits it.
	assert.Equal(t, "greet", def.Name)
	assert.Equal(t, "friendly", def.Variables["tone"])
	require.Len(t, def.Nodes, 1)
	assert.Equal(t, workflow.NodeTypeStandard, def.Nodes[0].Type)
}

func TestRegistryCachesAcrossLoads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "greet.yaml", greetYAML)

	r := NewRegistry(dir, nil)
	first, err := r.Load("greet")
	require.NoError(t, err)
	second, err := r.Load("greet")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRegistryInvalidateReloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "greet.yaml", greetYAML)

	r := NewRegistry(dir, nil)
	_, err := r.Load("greet")
	require.NoError(t, err)

	writeFile(t, dir, "greet.yaml", `
nodes:
  - type: Standard
    endpoint: main
    prompt: "changed"
`)
	r.Invalidate("greet")

	def, err := r.Load("greet")
	require.NoError(t, err)
	assert.Equal(t, "changed", def.Nodes[0].Prompt)
}

func TestRegistryUnknownWorkflow(t *testing.T) {
	r := NewRegistry(t.TempDir(), nil)
	_, err := r.Load("missing")
	require.Error(t, err)
	assert.Equal(t, types.ErrWorkflowNotFound, types.GetErrorCode(err))
}

func TestRegistryRejectsPathTraversal(t *testing.T) {
	r := NewRegistry(t.TempDir(), nil)
	_, err := r.Load("../outside")
	require.Error(t, err)
	assert.Equal(t, types.ErrWorkflowNotFound, types.GetErrorCode(err))
}

func TestRegistryRejectsEmptyNodeList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.yaml", "nodes: []\n")

	r := NewRegistry(dir, nil)
	_, err := r.Load("empty")
	require.Error(t, err)
	assert.Equal(t, types.ErrMissingStaticField, types.GetErrorCode(err))
}

func TestRegistryRejectsMultipleResponders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dupe.yaml", `
nodes:
  - type: Standard
    endpoint: main
    prompt: a
    return_to_user: true
  - type: Standard
    endpoint: main
    prompt: b
    return_to_user: true
`)

	r := NewRegistry(dir, nil)
	_, err := r.Load("dupe")
	require.Error(t, err)
	assert.Equal(t, types.ErrMultipleResponders, types.GetErrorCode(err))
}
