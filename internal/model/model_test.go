package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Validate_Valid(t *testing.T) {
	s := &Store{Name: "stores/contracts-2024", DisplayName: "Contracts 2024"}
	assert.NoError(t, s.Validate())
}

func TestStore_Validate_MissingName(t *testing.T) {
	s := &Store{DisplayName: "Contracts 2024"}
	assert.Error(t, s.Validate())
}

func TestNormalizeFileState(t *testing.T) {
	tests := []struct {
		input    string
		expected FileState
	}{
		{"STATE_ACTIVE", FileStateActive},
		{"ACTIVE", FileStateActive},
		{"active", FileStateActive},
		{"STATE_PROCESSING", FileStateProcessing},
		{"processing", FileStateProcessing},
		{"pending", FileStateProcessing},
		{"", FileStateProcessing},
		{"STATE_FAILED", FileStateFailed},
		{"failed", FileStateFailed},
		{"error", FileStateFailed},
		{"archived", FileState("archived")},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeFileState(tc.input))
		})
	}
}

func TestMetadata_ApplyDefaults_FillsEmptyFields(t *testing.T) {
	m := Metadata{DocType: "Contratto"}
	m.ApplyDefaults(map[string]string{
		"practice": "immobiliare",
		"doc_type": "Altro",
		"client":   "ACME Srl",
		"tags":     "2024, riservato",
	})

	assert.Equal(t, "immobiliare", m.Practice)
	assert.Equal(t, "Contratto", m.DocType, "explicit value must win over default")
	assert.Equal(t, "ACME Srl", m.Client)
	assert.Equal(t, []string{"2024", "riservato"}, m.Tags)
}

func TestMetadata_ApplyDefaults_ExistingTagsKept(t *testing.T) {
	m := Metadata{Tags: []string{"urgente"}}
	m.ApplyDefaults(map[string]string{"tags": "2024"})
	assert.Equal(t, []string{"urgente"}, m.Tags)
}

func TestMetadata_ApplyDefaults_NilMap(t *testing.T) {
	m := Metadata{Practice: "penale"}
	m.ApplyDefaults(nil)
	assert.Equal(t, "penale", m.Practice)
}

func TestPathHash_StableAndShort(t *testing.T) {
	h1 := PathHash("/archive/contratti/acme-2024.pdf")
	h2 := PathHash("/archive/contratti/acme-2024.pdf")
	h3 := PathHash("/archive/contratti/acme-2023.pdf")

	require.Len(t, h1, 16)
	assert.Equal(t, h1, h2, "same path must hash identically")
	assert.NotEqual(t, h1, h3, "different paths must hash differently")
}

func TestChunking_Validate(t *testing.T) {
	tests := []struct {
		name     string
		chunking Chunking
		wantErr  bool
	}{
		{"defaults", Chunking{MaxTokens: 1024, OverlapTokens: 100}, false},
		{"min window", Chunking{MaxTokens: 200, OverlapTokens: 0}, false},
		{"max window", Chunking{MaxTokens: 2048, OverlapTokens: 512}, false},
		{"window too small", Chunking{MaxTokens: 199, OverlapTokens: 0}, true},
		{"window too large", Chunking{MaxTokens: 2049, OverlapTokens: 0}, true},
		{"negative overlap", Chunking{MaxTokens: 1024, OverlapTokens: -1}, true},
		{"overlap too large", Chunking{MaxTokens: 1024, OverlapTokens: 513}, true},
		{"overlap equals window", Chunking{MaxTokens: 300, OverlapTokens: 300}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.chunking.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChunking_IsZero(t *testing.T) {
	assert.True(t, Chunking{}.IsZero())
	assert.False(t, Chunking{MaxTokens: 1024}.IsZero())
}
