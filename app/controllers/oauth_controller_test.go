package controllers

import (
	"testing"

	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"

	"github.com/launchfox/launchfox/app/models"
)

func TestApplyProviderProfile(t *testing.T) {
	user := &models.User{Name: "Jane", AvatarURL: "https://cdn.example.com/old.png"}
	applyProviderProfile(user, goth.User{Name: "Janet", AvatarURL: "https://cdn.example.com/new.png"})
	assert.Equal(t, "https://cdn.example.com/new.png", user.AvatarURL, "avatar must follow the provider on every login")
	assert.Equal(t, "Jane", user.Name, "a chosen name is not overwritten")

	user = &models.User{AvatarURL: "https://cdn.example.com/old.png"}
	applyProviderProfile(user, goth.User{NickName: "jdoe"})
	assert.Equal(t, "https://cdn.example.com/old.png", user.AvatarURL, "an empty provider avatar does not clear the stored one")
	assert.Equal(t, "jdoe", user.Name)

	user = &models.User{}
	applyProviderProfile(user, goth.User{})
	assert.Equal(t, "User", user.Name)
}
