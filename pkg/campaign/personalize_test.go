package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPersonalizeSubstitutesKnownFields(t *testing.T) {
	fields := map[string]string{
		"firstName": "Ada",
		"company":   "Initech",
	}

	result := Personalize("Hi {{firstName}}, how are things at {{company}}?", fields)
	assert.Equal(t, "Hi Ada, how are things at Initech?", result)
}

func TestPersonalizeLeavesUnresolvedPlaceholdersVerbatim(t *testing.T) {
	result := Personalize("Hi {{firstName}}, re {{topic}}", map[string]string{"firstName": "Ada"})
	assert.Equal(t, "Hi Ada, re {{topic}}", result)
}

func TestPersonalizeToleratesSpacesInsideBraces(t *testing.T) {
	result := Personalize("Hi {{ firstName }}", map[string]string{"firstName": "Ada"})
	assert.Equal(t, "Hi Ada", result)
}

func TestPersonalizeWithoutPlaceholders(t *testing.T) {
	assert.Equal(t, "plain text", Personalize("plain text", nil))
	assert.Equal(t, "", Personalize("", map[string]string{"a": "b"}))
}
