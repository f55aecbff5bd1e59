package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleAuthorFromPath_CanonicalName(t *testing.T) {
	title, author := titleAuthorFromPath("/novels/Mystic Sword by Jane Doe (Jian Daoren) - Xuan Jian by Zhang San.txt")
	assert.Equal(t, "Mystic Sword", title)
	assert.Equal(t, "Jane Doe", author)
}

func TestTitleAuthorFromPath_FallsBackToStem(t *testing.T) {
	title, author := titleAuthorFromPath("/novels/raw_input.txt")
	assert.Equal(t, "raw_input", title)
	assert.Equal(t, "Unknown", author)
}
