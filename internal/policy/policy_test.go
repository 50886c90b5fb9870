package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractPolicyAllowsBeforeFreeze(t *testing.T) {
	p := NewContractPolicy()
	assert.NoError(t, p.CheckWrite("types/foo.ts"))
}

func TestContractPolicyBlocksFrozenPrefixAfterFreeze(t *testing.T) {
	p := NewContractPolicy()
	p.Freeze(nil)

	assert.ErrorContains(t, p.CheckWrite("types/foo.ts"), "CONTRACT_FROZEN_WRITE_BLOCKED")
	assert.ErrorContains(t, p.CheckWrite("store/index.ts"), "CONTRACT_FROZEN_WRITE_BLOCKED")
	assert.ErrorContains(t, p.CheckWrite("components/ui/Button.tsx"), "CONTRACT_FROZEN_WRITE_BLOCKED")
	assert.NoError(t, p.CheckWrite("pages/Home.tsx"))
}

func TestEvaluatePathRejectsTraversalAndAbsolute(t *testing.T) {
	cases := []string{"", ".", "..", "../outside.ts", "a/../b", "/etc/passwd", "C:/x", `\\server\share`}
	for _, c := range cases {
		d := EvaluatePath(c)
		assert.Falsef(t, d.Allowed, "expected %q to be blocked", c)
	}
}

func TestEvaluatePathUnwrapsSyntheticRoot(t *testing.T) {
	d := EvaluatePath("generated-web-app/src/App.tsx")
	require.True(t, d.Allowed)
	assert.Equal(t, "src/App.tsx", d.NormalizedPath)

	d = EvaluatePath("web-prototype/src/App.tsx")
	require.True(t, d.Allowed)
	assert.Equal(t, "src/App.tsx", d.NormalizedPath)
}

func TestEvaluatePathLeavesOrdinaryPaths(t *testing.T) {
	d := EvaluatePath("package.json")
	require.True(t, d.Allowed)
	assert.Equal(t, "package.json", d.NormalizedPath)
}

func TestNormalizeGeneratedDropsBlockedAndUnwrapsAllowed(t *testing.T) {
	out := NormalizeGenerated([]string{"generated-web-app/package.json", "generated-web-app/src/App.tsx", "../outside.ts"})
	assert.Equal(t, []string{"package.json", "src/App.tsx"}, out)
}

func TestReadBudgetUnboundedWithoutExistingArtifacts(t *testing.T) {
	b := NewReadBudget()
	for i := 0; i < 30; i++ {
		assert.NoError(t, b.CheckAndRecord("s1", 1, "file.ts", false))
	}
}

func TestReadBudgetCapsTotalReads(t *testing.T) {
	b := NewReadBudget()
	for i := 0; i < 24; i++ {
		require.NoError(t, b.CheckAndRecord("s1", 1, "f.ts", true))
	}
	err := b.CheckAndRecord("s1", 1, "f.ts", true)
	assert.ErrorContains(t, err, "READ_BUDGET_EXCEEDED")
}

func TestReadBudgetCapsUniquePaths(t *testing.T) {
	b := NewReadBudget()
	for i := 0; i < 12; i++ {
		require.NoError(t, b.CheckAndRecord("s1", 1, fmtPath(i), true))
	}
	err := b.CheckAndRecord("s1", 1, "thirteenth.ts", true)
	assert.ErrorContains(t, err, "READ_BUDGET_EXCEEDED")
}

func TestReadBudgetIsolatesByIteration(t *testing.T) {
	b := NewReadBudget()
	for i := 0; i < 24; i++ {
		require.NoError(t, b.CheckAndRecord("s1", 1, "f.ts", true))
	}
	assert.NoError(t, b.CheckAndRecord("s1", 2, "f.ts", true))
}

func fmtPath(i int) string {
	return string(rune('a'+i)) + ".ts"
}
