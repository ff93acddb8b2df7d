package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyQTO/internal/domain/component"
)

func TestClassifyCmd_Table(t *testing.T) {
	out, err := execute(t, "classify", "C30混凝土柱600×600×3000", "see detail 3", "--config", writeConfig(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "LABEL"))
	assert.Contains(t, lines[2], "0.60×0.60×3.00")
	assert.Contains(t, lines[3], "unrecognised")
}

func TestClassifyCmd_JSON(t *testing.T) {
	out, err := execute(t, "classify", "C30混凝土柱600×600×3000", "--config", writeConfig(t), "-o", "json")
	require.NoError(t, err)

	var got ClassifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Items, 1)
	require.NotNil(t, got.Items[0].Component)
	assert.Equal(t, component.KindColumn, got.Items[0].Component.Kind)
	assert.Equal(t, "C30", got.Items[0].Component.Grade)
	assert.Nil(t, got.Items[0].Component.Price)
}

func TestClassifyCmd_RequiresLabel(t *testing.T) {
	_, err := execute(t, "classify", "--config", writeConfig(t))
	assert.Error(t, err)
}

//Personal.AI order the ending
