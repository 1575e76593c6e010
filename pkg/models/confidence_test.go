package models_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timothy-han/mara/pkg/models"
)

func TestSchemeByName(t *testing.T) {
	scheme, err := models.SchemeByName(models.SchemeHighModerateLow)
	require.NoError(t, err)
	assert.Equal(t, [3]string{"HIGH", "MODERATE", "LOW"}, scheme.Labels())

	scheme, err = models.SchemeByName(models.SchemeGreenYellowRed)
	require.NoError(t, err)
	assert.Equal(t, [3]string{"GREEN", "YELLOW", "RED"}, scheme.Labels())
}

func TestSchemeByName_EmptyDefaultsToHighModerateLow(t *testing.T) {
	scheme, err := models.SchemeByName("")
	require.NoError(t, err)
	assert.Equal(t, models.SchemeHighModerateLow, scheme.Name)
}

func TestSchemeByName_Unknown(t *testing.T) {
	_, err := models.SchemeByName("stoplight")
	assert.Error(t, err)
}

func TestNormalize_CaseAndWhitespace(t *testing.T) {
	scheme, err := models.SchemeByName(models.SchemeHighModerateLow)
	require.NoError(t, err)

	for _, token := range []string{"HIGH", "high", "High", "  HIGH  ", "hIgH"} {
		got, ok := scheme.Normalize(token)
		assert.True(t, ok, "token %q should normalize", token)
		assert.Equal(t, models.Confidence("HIGH"), got)
	}
}

func TestNormalize_UnknownTokenNeverCoerced(t *testing.T) {
	scheme, err := models.SchemeByName(models.SchemeHighModerateLow)
	require.NoError(t, err)

	for _, token := range []string{"", "MEDIUM", "GREEN", "very high", "HIGHEST"} {
		got, ok := scheme.Normalize(token)
		assert.False(t, ok, "token %q should not normalize", token)
		assert.Empty(t, got)
	}
}

func TestNormalize_CrossSchemeTokensRejected(t *testing.T) {
	scheme, err := models.SchemeByName(models.SchemeGreenYellowRed)
	require.NoError(t, err)

	_, ok := scheme.Normalize("MODERATE")
	assert.False(t, ok)
}

func TestCriteriaText_OneLinePerTier(t *testing.T) {
	scheme, err := models.SchemeByName(models.SchemeHighModerateLow)
	require.NoError(t, err)

	text := scheme.CriteriaText()
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "HIGH - "))
	assert.True(t, strings.HasPrefix(lines[1], "MODERATE - "))
	assert.True(t, strings.HasPrefix(lines[2], "LOW - "))
}
