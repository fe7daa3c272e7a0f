package model

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipeImageKey(t *testing.T) {
	key := RecipeImageKey("myphoto.jpg")

	assert.True(t, strings.HasPrefix(key, "recipes/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	// Everything but prefix and extension is a generated UUID
	name := strings.TrimSuffix(strings.TrimPrefix(key, "recipes/"), ".jpg")
	_, err := uuid.Parse(name)
	assert.NoError(t, err)

	// No part of the original name survives
	assert.NotContains(t, key, "myphoto")
}

func TestRecipeImageKeyUnique(t *testing.T) {
	assert.NotEqual(t, RecipeImageKey("a.png"), RecipeImageKey("a.png"))
}

func TestRecipeImageKeyNoExtension(t *testing.T) {
	key := RecipeImageKey("photo")
	assert.True(t, strings.HasPrefix(key, "recipes/"))
	assert.NotContains(t, key, ".")
}

func TestRecipeSharedAttributesSurviveDeletion(t *testing.T) {
	db := openTestDB(t)
	user := sampleUser(t, db, "a@example.com")

	tag := Tag{Name: "Vegan", UserID: user.ID}
	require.NoError(t, db.Create(&tag).Error)

	recipe := Recipe{Title: "Soup", TimeMinutes: 10, Price: 5, UserID: user.ID, Tags: []Tag{tag}}
	require.NoError(t, db.Create(&recipe).Error)

	require.NoError(t, db.Model(&recipe).Association("Tags").Clear())
	require.NoError(t, db.Delete(&recipe).Error)

	var count int64
	db.Model(&Tag{}).Where("id = ?", tag.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}
