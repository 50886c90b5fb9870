package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(search, replace string) string {
	return "<<<<<<< SEARCH\n" + search + "\n=======\n" + replace + "\n>>>>>>> REPLACE"
}

func TestApplyStrictMatchReplacesUniqueOccurrence(t *testing.T) {
	content := "function foo() {\n  return 1\n}\n"
	out, err := Apply("f.ts", content, block("  return 1", "  return 2"), true)
	require.NoError(t, err)
	assert.Contains(t, out, "return 2")
}

func TestApplyStrictMatchAmbiguousFails(t *testing.T) {
	content := "x\nx\n"
	_, err := Apply("f.ts", content, block("x", "y"), true)
	require.Error(t, err)
	var ae *ApplyError
	require.ErrorAs(t, err, &ae)
}

func TestApplyNormalizedMatchIgnoresWhitespace(t *testing.T) {
	content := "function foo() {\n    return    1\n}\n"
	out, err := Apply("f.ts", content, block("return 1", "return 2"), true)
	require.NoError(t, err)
	assert.Contains(t, out, "return 2")
}

func TestApplyNoMatchNormalizedReturnsHints(t *testing.T) {
	content := "alpha\nbeta\ngamma\n"
	_, err := Apply("f.ts", content, block("totally different text", "replacement"), true)
	require.Error(t, err)
	var ae *ApplyError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ReasonNoMatchNormalized, ae.Reason)
	assert.Len(t, ae.Hints, 3)
}

func TestApplyFullFileFallbackWhenSingleBlockFailsAndReplaceLooksComplete(t *testing.T) {
	content := "short file\n"
	replace := "import React from 'react'\nexport default function App() { return (<div>hi</div>) }\n"
	out, err := Apply("f.tsx", content, block("nonexistent search text block", replace), true)
	require.NoError(t, err)
	assert.Equal(t, replace, out)
}

func TestParseBlocksExtractsMultiple(t *testing.T) {
	raw := block("a", "b") + "\n" + block("c", "d")
	blocks := ParseBlocks(raw)
	require.Len(t, blocks, 2)
	assert.Equal(t, "a", blocks[0].Search)
	assert.Equal(t, "d", blocks[1].Replace)
}
