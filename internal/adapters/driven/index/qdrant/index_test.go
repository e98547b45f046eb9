package qdrant

import (
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

func TestPayloadRoundTrip(t *testing.T) {
	rec := domain.IndexRecord{
		ID:           "6f1c1b9e-3f0a-5b7e-9d43-0d2b6f9f4a11",
		DocumentID:   "doc-1",
		Sequence:     2,
		Text:         "Azure is a cloud platform.",
		Source:       "azure.pdf",
		Path:         "/docs/azure.pdf",
		DocumentType: "pdf",
		Start:        1600,
		End:          2600,
		Created:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	payload := qdrant.NewValueMap(toPayload(&rec))
	got := fromPayload(payload)

	assert.Equal(t, rec.DocumentID, got.DocumentID)
	assert.Equal(t, 2, got.Sequence)
	assert.Equal(t, rec.Text, got.Text)
	assert.Equal(t, rec.Source, got.Source)
	assert.Equal(t, rec.Path, got.Path)
	assert.Equal(t, "pdf", got.DocumentType)
	assert.Equal(t, 1600, got.Start)
	assert.Equal(t, 2600, got.End)
	assert.True(t, got.Created.Equal(rec.Created))
	assert.True(t, got.Modified.IsZero())
	assert.NotContains(t, payload, payloadModified)
}

func TestFilter(t *testing.T) {
	f, err := Filter(nil)
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = Filter(map[string]string{domain.FilterSource: "a.pdf", domain.FilterDocumentType: "pdf"})
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Len(t, f.GetMust(), 2)

	keys := map[string]string{}
	for _, c := range f.GetMust() {
		field := c.GetField()
		keys[field.GetKey()] = field.GetMatch().GetKeyword()
	}
	assert.Equal(t, map[string]string{"source": "a.pdf", "document_type": "pdf"}, keys)

	_, err = Filter(map[string]string{"text": "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
