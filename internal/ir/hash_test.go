package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHistory() []OperationRecord {
	return []OperationRecord{
		{ID: "op-1", Input: SketchRegionRef{Sketch: "s1"}, Params: ExtrudeParams{Distance: 10}, ResultBodies: []string{"main"}},
		{ID: "op-2", Input: FaceRef{Body: "main", Element: "op-1/face-1"}, Params: FilletParams{Radius: 1}, ResultBodies: []string{"main"}},
	}
}

func TestRecordHashDeterminism(t *testing.T) {
	rec := testHistory()[0]

	h1, err := RecordHash(rec)
	require.NoError(t, err)
	h2, err := RecordHash(rec)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestRecordHashChangesWithParams(t *testing.T) {
	a := testHistory()[0]
	b := a
	b.Params = ExtrudeParams{Distance: 10.000001}

	ha, err := RecordHash(a)
	require.NoError(t, err)
	hb, err := RecordHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestHistoryHashOrderSensitive(t *testing.T) {
	h := testHistory()
	reversed := []OperationRecord{h[1], h[0]}

	h1, err := HistoryHash(h)
	require.NoError(t, err)
	h2, err := HistoryHash(reversed)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestHistoryHashRejectsUnknownParams(t *testing.T) {
	_, err := HistoryHash([]OperationRecord{{ID: "bad", Input: BodyRef{Body: "b"}}})
	assert.Error(t, err)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte("same bytes")
	assert.NotEqual(t,
		hashWithDomain(DomainRecord, data),
		hashWithDomain(DomainIdentityMap, data))
	assert.Equal(t, hashWithDomain(DomainIdentityMap, data), IdentityMapHash("same bytes"))
}
