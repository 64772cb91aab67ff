package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widavies/RobluScouter/internal/checkout"
)

func qrFixture() checkout.Checkout {
	return checkout.Checkout{
		ID:       21,
		Status:   checkout.StatusCompleted,
		OwnerTag: "Will",
		Team: checkout.Team{
			Number: 2708,
			Name:   "Lake Effect Robotics",
			Tabs: []checkout.Tab{{
				Title:            "Quals 12",
				AlliancePosition: 2,
				Metrics: []checkout.Metric{
					{ID: 1, Title: "Crossed line", Modified: true, Value: checkout.BooleanValue{Checked: true}},
					{ID: 2, Title: "Cargo", Modified: true, Value: checkout.CounterValue{Value: 7, Increment: 1}},
					{ID: 3, Title: "Photos", Value: checkout.GalleryValue{PictureIDs: []int{4, 5}}},
					{ID: 4, Title: "Field", Value: checkout.FieldDataValue{}},
				},
			}},
		},
	}
}

func TestQR_RoundTrip(t *testing.T) {
	src := qrFixture()

	encoded, err := EncodeQR(src)
	require.NoError(t, err)

	got, err := DecodeQR(encoded)
	require.NoError(t, err)

	assert.Equal(t, src.ID, got.ID)
	assert.Equal(t, src.Status, got.Status)
	assert.Equal(t, src.OwnerTag, got.OwnerTag)
	assert.Equal(t, src.Team.Number, got.Team.Number)

	require.Len(t, got.Team.Tabs, 1)
	metrics := got.Team.Tabs[0].Metrics
	require.Len(t, metrics, 2, "gallery and field data must be stripped")
	assert.Equal(t, checkout.KindBoolean, metrics[0].Value.Kind())
	assert.Equal(t, checkout.KindCounter, metrics[1].Value.Kind())
}

func TestQR_EncodeDoesNotMutateSource(t *testing.T) {
	src := qrFixture()

	_, err := EncodeQR(src)
	require.NoError(t, err)

	assert.Len(t, src.Team.Tabs[0].Metrics, 4)
}

func TestQR_DecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeQR("not base64 at all!!!")
	assert.Error(t, err)

	_, err = DecodeQR("aGVsbG8gd29ybGQ=") // valid base64, not gzip
	assert.Error(t, err)
}
