package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanMarkdown(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanMarkdown("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanMarkdown("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanMarkdown("  {\"a\":1}  "))
}
