package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleOrder(t *testing.T) {
	r, ok := ParseRole(" Admin ")
	require.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("owner")
	assert.False(t, ok)

	assert.True(t, RoleSysadmin.AtLeast(RoleAdmin))
	assert.True(t, RoleMod.AtLeast(RoleMod))
	assert.False(t, RoleUser.AtLeast(RoleMod))
	assert.False(t, Role("ghost").AtLeast(RoleUser))
}

func TestIsBanned(t *testing.T) {
	now := time.Now()
	past, future := now.Add(-time.Minute), now.Add(time.Minute)

	assert.False(t, (&User{}).IsBanned(now))
	assert.True(t, (&User{Banned: true}).IsBanned(now), "no end date is permanent")
	assert.True(t, (&User{Banned: true, BannedUntil: &future}).IsBanned(now))
	assert.False(t, (&User{Banned: true, BannedUntil: &past}).IsBanned(now))
}

func TestTargetRefLookup(t *testing.T) {
	byUUID, v, ok := TargetRef{UUID: "u-1", Name: "bob"}.Lookup()
	assert.True(t, ok)
	assert.True(t, byUUID)
	assert.Equal(t, "u-1", v)

	byUUID, v, ok = TargetRef{Name: " bob "}.Lookup()
	assert.True(t, ok)
	assert.False(t, byUUID)
	assert.Equal(t, "bob", v)

	_, _, ok = TargetRef{User: "  "}.Lookup()
	assert.False(t, ok)
}

func TestBanRequestEndsAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var req BanRequest
	require.NoError(t, json.Unmarshal([]byte(`{"user":"bob","days":1.5,"reason":"spam"}`), &req))
	until, err := req.EndsAt(now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(36*time.Hour), *until)

	req = BanRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"user":"bob","until":"2026-01-02T00:00:00Z"}`), &req))
	until, err = req.EndsAt(now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour), *until)

	req = BanRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"user":"bob","until":1767225600000}`), &req))
	_, err = req.EndsAt(now)
	assert.Error(t, err, "until equal to now is not in the future")

	until, err = (&BanRequest{}).EndsAt(now)
	require.NoError(t, err)
	assert.Nil(t, until, "permanent")

	neg := -1.0
	_, err = (&BanRequest{Days: &neg}).EndsAt(now)
	assert.Error(t, err)
}

func TestBanRequestLongBans(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	longest := MaxBanDays
	until, err := (&BanRequest{Days: &longest}).EndsAt(now)
	require.NoError(t, err)
	assert.True(t, until.After(now))
	assert.True(t, (&User{Banned: true, BannedUntil: until}).IsBanned(now))

	huge := 1e6
	_, err = (&BanRequest{Days: &huge}).EndsAt(now)
	assert.Error(t, err, "would overflow a duration")

	var req BanRequest
	assert.Error(t, json.Unmarshal([]byte(`{"user":"bob","until":1e30}`), &req))

	req = BanRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"user":"bob","until":32503680000000}`), &req))
	until, err = req.EndsAt(now)
	require.NoError(t, err)
	assert.Equal(t, 3000, until.Year())
}

func TestCreatePostRequestBody(t *testing.T) {
	assert.Equal(t, "hi", (&CreatePostRequest{Content: " hi "}).Body())
	assert.Equal(t, "legacy", (&CreatePostRequest{Content: "  ", P: "legacy"}).Body())
	assert.Equal(t, "text", (&CreatePostRequest{Text: "text"}).Body())
	assert.Empty(t, (&CreatePostRequest{}).Body())
}

func TestUserJSONHidesSecrets(t *testing.T) {
	pw, tok := "hash", "tok"
	data, err := json.Marshal(&User{Name: "alice", Password: &pw, Token: &tok, Role: RoleUser})
	require.NoError(t, err)

	assert.NotContains(t, string(data), "hash")
	assert.NotContains(t, string(data), "tok")
	assert.Contains(t, string(data), `"name":"alice"`)
}
