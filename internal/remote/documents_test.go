package remote

import (
	"encoding/json"
	"testing"
	"time"

	"babyofficehours/internal/models"
	"babyofficehours/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestEncodeBaby_WireShape(t *testing.T) {
	creator := uuid.New()
	baby := models.NewBaby("Emma", creator, epoch)

	data, err := encodeBaby(*baby)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Emma", doc["name"])
	assert.Equal(t, creator.String(), doc["createdBy"])
	assert.Equal(t, []any{creator.String()}, doc["parents"])
	assert.Equal(t, []any{}, doc["subscribers"])
	assert.Equal(t, true, doc["isAvailable"])
	assert.Equal(t, "2026-03-01T08:00:00Z", doc["lastStatusChange"])
}

func TestDecodeBaby(t *testing.T) {
	id := uuid.New()
	creator := uuid.New()
	sub := uuid.New()

	tests := []struct {
		name    string
		data    string
		wantErr bool
		check   func(t *testing.T, b *models.Baby)
	}{
		{
			name: "complete",
			data: `{"name":"Emma","createdBy":"` + creator.String() + `","parents":["` + creator.String() + `"],"subscribers":["` + sub.String() + `"],"isAvailable":false,"lastStatusChange":"2026-02-01T10:00:00Z"}`,
			check: func(t *testing.T, b *models.Baby) {
				assert.Equal(t, "Emma", b.Name)
				assert.False(t, b.IsAvailable)
				assert.True(t, b.IsSubscriber(sub))
				assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), b.LastStatusChange.UTC())
			},
		},
		{
			name: "missing timestamp falls back to now",
			data: `{"name":"Emma","createdBy":"` + creator.String() + `","parents":[],"subscribers":[]}`,
			check: func(t *testing.T, b *models.Baby) {
				assert.Equal(t, epoch, b.LastStatusChange)
				assert.True(t, b.IsParent(creator))
			},
		},
		{
			name: "bad member ids are dropped",
			data: `{"name":"Emma","createdBy":"` + creator.String() + `","parents":["nope"],"subscribers":["also-nope"]}`,
			check: func(t *testing.T, b *models.Baby) {
				assert.Equal(t, []uuid.UUID{creator}, b.Parents)
				assert.Empty(t, b.Subscribers)
			},
		},
		{name: "missing name", data: `{"createdBy":"` + creator.String() + `"}`, wantErr: true},
		{name: "missing creator", data: `{"name":"Emma"}`, wantErr: true},
		{name: "bad creator", data: `{"name":"Emma","createdBy":"x"}`, wantErr: true},
		{name: "not json", data: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := decodeBaby(id.String(), []byte(tt.data), epoch)
			if tt.wantErr {
				assert.ErrorIs(t, err, service.ErrMalformedDocument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, b.ID)
			tt.check(t, b)
		})
	}
}

func TestDecodeBaby_InvalidID(t *testing.T) {
	_, err := decodeBaby("not-a-uuid", []byte(`{"name":"Emma"}`), epoch)
	assert.ErrorIs(t, err, service.ErrMalformedDocument)
}

func TestInviteDocument_RoundTrip(t *testing.T) {
	expires := epoch.Add(7 * 24 * time.Hour)
	inv := models.NewInvite(uuid.New(), models.RoleSubscriber, uuid.New(), epoch, &expires)
	redeemer := uuid.New()
	require.True(t, inv.Redeem(redeemer, epoch.Add(time.Hour)))

	data, err := encodeInvite(*inv)
	require.NoError(t, err)

	got, err := decodeInvite(inv.ID.String(), data, epoch.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, inv.BabyID, got.BabyID)
	assert.Equal(t, models.RoleSubscriber, got.Role)
	assert.Equal(t, inv.CreatedAt, got.CreatedAt)
	assert.True(t, got.IsRedeemed)
	require.NotNil(t, got.RedeemedBy)
	assert.Equal(t, redeemer, *got.RedeemedBy)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, expires.Equal(*got.ExpiresAt))
}

func TestDecodeInvite_Malformed(t *testing.T) {
	baby := uuid.New().String()
	creator := uuid.New().String()

	tests := []struct {
		name string
		data string
	}{
		{name: "missing baby", data: `{"role":"parent","createdBy":"` + creator + `"}`},
		{name: "missing role", data: `{"babyId":"` + baby + `","createdBy":"` + creator + `"}`},
		{name: "unknown role", data: `{"babyId":"` + baby + `","role":"owner","createdBy":"` + creator + `"}`},
		{name: "bad baby id", data: `{"babyId":"x","role":"parent","createdBy":"` + creator + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeInvite(uuid.New().String(), []byte(tt.data), epoch)
			assert.ErrorIs(t, err, service.ErrMalformedDocument)
		})
	}
}

func TestDecodeInvite_MissingCreatedAtFallsBackToNow(t *testing.T) {
	data := `{"babyId":"` + uuid.New().String() + `","role":"parent","createdBy":"` + uuid.New().String() + `","isRedeemed":false}`
	inv, err := decodeInvite(uuid.New().String(), []byte(data), epoch)
	require.NoError(t, err)
	assert.Equal(t, epoch, inv.CreatedAt)
	assert.Nil(t, inv.ExpiresAt)
	assert.True(t, inv.IsValid(epoch.Add(365*24*time.Hour)))
}

func TestUserDocument_OmitsUnsetFields(t *testing.T) {
	u := models.NewUser()

	data, err := encodeUser(*u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"babies":[]}`, string(data))

	got, err := decodeUser(u.ID.String(), data)
	require.NoError(t, err)
	assert.Nil(t, got.Name)
	assert.Equal(t, "Unknown", got.DisplayName())
}
