package importer

import (
	"encoding/json"
	"testing"

	"catalog-backend/dtos"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapping(t *testing.T) {
	mapping, err := ParseMapping(map[string]*string{
		"Nome":      strPtr("name"),
		"Preço":     strPtr("base_price"),
		"Obs":       strPtr("ignore"),
		"Vazio":     strPtr(""),
		"Sem valor": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, Mapping{"Nome": FieldName, "Preço": FieldBasePrice}, mapping)
}

func TestParseMappingUnknownField(t *testing.T) {
	_, err := ParseMapping(map[string]*string{
		"Nome":  strPtr("name"),
		"Preço": strPtr("base_price"),
		"X":     strPtr("preco_custo"),
		"Y":     strPtr("altura"),
	})
	require.ErrorIs(t, err, ErrUnknownField)
	assert.Contains(t, err.Error(), "altura, preco_custo")
}

func TestParseMappingRequiresNameAndPrice(t *testing.T) {
	_, err := ParseMapping(map[string]*string{"Nome": strPtr("name")})
	require.ErrorIs(t, err, ErrMissingRequiredField)
	assert.Contains(t, err.Error(), "base_price")

	_, err = ParseMapping(map[string]*string{"Preço": strPtr("base_price")})
	require.ErrorIs(t, err, ErrMissingRequiredField)
	assert.Contains(t, err.Error(), "name")
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(dtos.ImportConfig{
		Mapping:           map[string]*string{"Nome": strPtr("name"), "Preço": strPtr("base_price")},
		DuplicateHandling: "update",
		CategoryCreation:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, DuplicateUpdate, cfg.DuplicatePolicy)
	assert.True(t, cfg.CreateCategories)
	assert.False(t, cfg.CreateMaterials)

	raw, err := cfg.Encode()
	require.NoError(t, err)
	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, "update", stored["duplicate_handling"])
	assert.Equal(t, map[string]interface{}{"Nome": "name", "Preço": "base_price"}, stored["mapping"])

	_, err = NewConfig(dtos.ImportConfig{
		Mapping:           map[string]*string{"Nome": strPtr("name"), "Preço": strPtr("base_price")},
		DuplicateHandling: "merge",
	})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{"pending", "cancelled"},
		{"processing", "paused"},
		{"processing", "cancelled"},
		{"paused", "processing"},
		{"paused", "cancelled"},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]string{
		{"pending", "processing"},
		{"pending", "paused"},
		{"processing", "completed"},
		{"completed", "cancelled"},
		{"failed", "processing"},
		{"cancelled", "processing"},
		{"paused", "paused"},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}
