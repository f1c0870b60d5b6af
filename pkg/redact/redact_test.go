package redact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelgov/auditchain/pkg/types"
)

func sampleEntry() types.Entry {
	return types.Entry{
		Index:     3,
		Kind:      types.KindToolExecution,
		Timestamp: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		ReceiptID: "AR-0198B2C4-DEADBEEF",
		PrevHash:  "aaaa",
		EntryHash: "bbbb",
		ToolName:  "send_notification",
		ToolArguments: map[string]interface{}{
			"recipient": "jane.doe@example.com",
			"message":   "Call me at (555) 123-4567 or +14155552671",
			"nested": map[string]interface{}{
				"address": "742 Evergreen Terrace Springfield",
				"street":  "1600 Pennsylvania Avenue",
			},
		},
		ExecutionStatus: types.ExecutionSuccess,
		AdminEmail:      "ops@example.gov",
		AdminName:       "Pat Admin",
	}
}

func TestRedactRemovesEmailsAndPhones(t *testing.T) {
	out, err := Redact(sampleEntry(), nil)
	require.NoError(t, err)

	assert.Equal(t, Placeholder, out.ToolArguments["recipient"])
	msg := out.ToolArguments["message"].(string)
	assert.NotContains(t, msg, "555")
	assert.NotContains(t, msg, "+1415")
	assert.Contains(t, msg, Placeholder)
}

func TestRedactRemovesStreetAddresses(t *testing.T) {
	out, err := Redact(sampleEntry(), nil)
	require.NoError(t, err)

	nested := out.ToolArguments["nested"].(map[string]interface{})
	assert.NotContains(t, nested["street"].(string), "Pennsylvania")
}

func TestRedactBlanksNameFields(t *testing.T) {
	out, err := Redact(sampleEntry(), nil)
	require.NoError(t, err)

	assert.Equal(t, Placeholder, out.AdminName)
	assert.Equal(t, Placeholder, out.AdminEmail)
}

func TestRedactPreservesStructuralFields(t *testing.T) {
	in := sampleEntry()
	out, err := Redact(in, nil)
	require.NoError(t, err)

	assert.Equal(t, in.ReceiptID, out.ReceiptID)
	assert.Equal(t, in.Timestamp, out.Timestamp)
	assert.Equal(t, in.ToolName, out.ToolName)
	assert.Equal(t, in.ExecutionStatus, out.ExecutionStatus)
	assert.Equal(t, in.PrevHash, out.PrevHash)
	assert.Equal(t, in.EntryHash, out.EntryHash)
	assert.Equal(t, in.Index, out.Index)
}

func TestRedactIsDeterministic(t *testing.T) {
	a, err := Redact(sampleEntry(), nil)
	require.NoError(t, err)
	b, err := Redact(sampleEntry(), nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRedactNeverMutatesInput(t *testing.T) {
	in := sampleEntry()
	_, err := Redact(in, nil)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", in.ToolArguments["recipient"])
}

func TestShouldRedact(t *testing.T) {
	assert.True(t, ShouldRedact("1"))
	assert.True(t, ShouldRedact("true"))
	assert.True(t, ShouldRedact("on"))
	assert.False(t, ShouldRedact(""))
	assert.False(t, ShouldRedact("0"))
	assert.False(t, ShouldRedact("false"))
}
