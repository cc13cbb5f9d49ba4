package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarquez/pcitrack/internal/model"
)

const sampleAOC = `
Attestation of Compliance

Company Name: Acme Payments S.A.
PCI DSS Version 4.0.1
Assessment Date: 2024-01-01
Valid Until: 2025-01-01
QSA Company: SecureAudit LLC
`

func TestParseFields(t *testing.T) {
	fields := ParseFields(sampleAOC, model.TypeAOC)
	assert.Equal(t, "Acme Payments S.A.", fields[FieldMerchantName])
	assert.Equal(t, "4.0.1", fields[FieldPCIVersion])
	assert.Equal(t, "2024-01-01", fields[FieldIssueDate])
	assert.Equal(t, "2025-01-01", fields[FieldExpirationDate])
	assert.Equal(t, "SecureAudit LLC", fields[FieldEvaluator])
}

func TestParseFieldsMissing(t *testing.T) {
	fields := ParseFields("nothing useful here", model.TypeASV)
	assert.Empty(t, fields)
}

func TestParseDate(t *testing.T) {
	for _, raw := range []string{"2025-01-01", "January 1, 2025", "Jan 1, 2025"} {
		parsed, ok := ParseDate(raw)
		require.True(t, ok, raw)
		assert.Equal(t, 2025, parsed.Year())
	}
	_, ok := ParseDate("sometime next year")
	assert.False(t, ok)
}

func TestAutoValidate(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	doc := &model.Document{
		ExpirationDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("complete fields pass", func(t *testing.T) {
		v := AutoValidate(doc, ParseFields(sampleAOC, model.TypeAOC), now)
		assert.True(t, v.Valid())
		assert.Equal(t, model.ValidationAutomatic, v.Method)
		assert.Equal(t, "Acme Payments S.A.", v.ExtractedData[FieldMerchantName])
	})

	t.Run("missing fields fail", func(t *testing.T) {
		v := AutoValidate(doc, map[string]string{}, now)
		assert.True(t, v.Rejected())
		assert.Contains(t, v.Notes, "missing")
	})

	t.Run("expiration mismatch fails", func(t *testing.T) {
		fields := ParseFields(sampleAOC, model.TypeAOC)
		fields[FieldExpirationDate] = "2024-06-01"
		v := AutoValidate(doc, fields, now)
		assert.True(t, v.Rejected())
		assert.Contains(t, v.Notes, "does not match")
	})
}
