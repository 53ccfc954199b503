package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sirena/pkg/proto/envelope"
)

func TestSelectValues(t *testing.T) {
	a, err := envelope.Parse("describe",
		`<sirena><answer><describe><data><city><code>MOW</code><code>LED</code></city><name>x</name></data></describe></answer></sirena>`)
	require.NoError(t, err)

	assert.Equal(t, []string{"MOW", "LED"}, selectValues(a.Data, "data/city/code"))
	assert.Equal(t, []string{"x"}, selectValues(a.Data, "/data/name/"))
	assert.Empty(t, selectValues(a.Data, "data/missing/code"))
	assert.Empty(t, selectValues(nil, "data"))
}
