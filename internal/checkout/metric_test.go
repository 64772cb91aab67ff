package checkout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetric_RoundTrip(t *testing.T) {
	m := Metric{
		ID:       4,
		Title:    "Auto crossed line",
		Modified: true,
		Value:    BooleanValue{Checked: true},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var got Metric
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Title, got.Title)
	assert.True(t, got.Modified)
	assert.Equal(t, BooleanValue{Checked: true}, got.Value)
}

func TestMetric_UnknownKindRejected(t *testing.T) {
	var m Metric
	err := json.Unmarshal([]byte(`{"kind":"hologram","id":1,"title":"x","payload":{}}`), &m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metric kind")
}

func TestMetric_NilValueRejectedOnMarshal(t *testing.T) {
	_, err := json.Marshal(Metric{ID: 1, Title: "empty"})
	require.Error(t, err)
}

func TestMetric_SliderPayload(t *testing.T) {
	m := Metric{ID: 2, Title: "Climb speed", Value: SliderValue{Value: 3, Min: 0, Max: 10}}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var got Metric
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, KindSlider, got.Value.Kind())
	assert.Equal(t, SliderValue{Value: 3, Min: 0, Max: 10}, got.Value)
}

func TestUserEdited_DerivedAndReadOnlyExcluded(t *testing.T) {
	tests := []struct {
		name string
		m    Metric
		want bool
	}{
		{"modified slider counts", Metric{Modified: true, Value: SliderValue{}}, true},
		{"unmodified slider does not", Metric{Modified: false, Value: SliderValue{}}, false},
		{"calculation never counts", Metric{Modified: true, Value: CalculationValue{}}, false},
		{"field data never counts", Metric{Modified: true, Value: FieldDataValue{}}, false},
		{"nil value never counts", Metric{Modified: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.UserEdited())
		})
	}
}

func TestMetric_Clone_NoAliasing(t *testing.T) {
	m := Metric{
		ID:    9,
		Value: GalleryValue{PictureIDs: []int{1, 2}, Images: [][]byte{{0xAA}}},
	}

	clone := m.Clone()
	gv := clone.Value.(GalleryValue)
	gv.PictureIDs[0] = 99
	gv.Images[0][0] = 0xBB

	orig := m.Value.(GalleryValue)
	assert.Equal(t, 1, orig.PictureIDs[0], "clone must not alias picture IDs")
	assert.Equal(t, byte(0xAA), orig.Images[0][0], "clone must not alias image bytes")
}
