package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditDetails_RoundTripKeepsKind(t *testing.T) {
	in := BatchSummaryDetails{Operation: "ship", Requested: 3, Total: 2, Success: 1, Failed: 1, AutoInvoiced: 1}

	raw, err := MarshalDetails(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"batch_summary"`)

	out, err := UnmarshalDetails(raw)
	require.NoError(t, err)
	got, ok := out.(*BatchSummaryDetails)
	require.True(t, ok)
	assert.Equal(t, in, *got)
}

func TestUnmarshalDetails_UnknownKind(t *testing.T) {
	_, err := UnmarshalDetails([]byte(`{"kind":"mystery","data":{}}`))
	assert.Error(t, err)
}

func TestUnmarshalDetails_Null(t *testing.T) {
	d, err := UnmarshalDetails([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, d)
}
