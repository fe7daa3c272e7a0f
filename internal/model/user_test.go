package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserHashesPassword(t *testing.T) {
	user, err := NewUser("test@example.com", "TestPass123", "Test User")
	require.NoError(t, err)

	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, "Test User", user.Name)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsStaff)
	assert.False(t, user.IsSuperuser)
	assert.NotEqual(t, "TestPass123", user.PasswordHash)
	assert.True(t, user.CheckPassword("TestPass123"))
	assert.False(t, user.CheckPassword("wrong"))
}

func TestNewUserEmailNormalized(t *testing.T) {
	user, err := NewUser("Test@EXAMPLE.COM", "password", "")
	require.NoError(t, err)

	// Only the domain portion is lowercased
	assert.Equal(t, "Test@example.com", user.Email)
}

func TestNewUserEmptyEmail(t *testing.T) {
	_, err := NewUser("", "password", "")
	assert.ErrorIs(t, err, ErrEmailRequired)
}

func TestNewSuperuser(t *testing.T) {
	user, err := NewSuperuser("admin@example.com", "test123")
	require.NoError(t, err)

	assert.True(t, user.IsStaff)
	assert.True(t, user.IsSuperuser)
	assert.True(t, user.IsActive)
}

func TestSetPasswordRehashes(t *testing.T) {
	user, err := NewUser("test@example.com", "first", "")
	require.NoError(t, err)

	require.NoError(t, user.SetPassword("second"))
	assert.False(t, user.CheckPassword("first"))
	assert.True(t, user.CheckPassword("second"))
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user@GMAIL.COM", "user@gmail.com"},
		{"User@Example.Com", "User@example.com"},
		{"noatsign", "noatsign"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeEmail(tt.in))
	}
}

func TestPurgeUserCascades(t *testing.T) {
	db := openTestDB(t)

	owner := sampleUser(t, db, "owner@example.com")
	other := sampleUser(t, db, "other@example.com")

	tag := Tag{Name: "Vegan", UserID: owner.ID}
	require.NoError(t, db.Create(&tag).Error)
	ingredient := Ingredient{Name: "Salt", UserID: owner.ID}
	require.NoError(t, db.Create(&ingredient).Error)
	recipe := Recipe{
		Title:       "Soup",
		TimeMinutes: 10,
		Price:       5.00,
		UserID:      owner.ID,
		Tags:        []Tag{tag},
		Ingredients: []Ingredient{ingredient},
	}
	require.NoError(t, db.Create(&recipe).Error)

	token := AuthToken{UserID: owner.ID}
	require.NoError(t, db.Create(&token).Error)

	keptTag := Tag{Name: "Dessert", UserID: other.ID}
	require.NoError(t, db.Create(&keptTag).Error)

	require.NoError(t, PurgeUser(db, owner.ID))

	var count int64
	db.Model(&User{}).Where("id = ?", owner.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&Tag{}).Where("user_id = ?", owner.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&Ingredient{}).Where("user_id = ?", owner.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&Recipe{}).Where("user_id = ?", owner.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&AuthToken{}).Where("user_id = ?", owner.ID).Count(&count)
	assert.Zero(t, count)
	db.Table("recipe_tags").Count(&count)
	assert.Zero(t, count)
	db.Table("recipe_ingredients").Count(&count)
	assert.Zero(t, count)

	// The other user's records survive
	db.Model(&Tag{}).Where("user_id = ?", other.ID).Count(&count)
	assert.EqualValues(t, 1, count)
	db.Model(&User{}).Where("id = ?", other.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}
