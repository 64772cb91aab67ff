package checkout

import (
	"encoding/json"
	"fmt"
)

// MetricKind identifies a metric payload type. The set is closed: decoding
// an unknown kind is an error, never a silent passthrough.
type MetricKind string

const (
	KindBoolean      MetricKind = "boolean"
	KindCheckbox     MetricKind = "checkbox"
	KindChooser      MetricKind = "chooser"
	KindCounter      MetricKind = "counter"
	KindDivider      MetricKind = "divider"
	KindFieldData    MetricKind = "fielddata"
	KindFieldDiagram MetricKind = "fielddiagram"
	KindGallery      MetricKind = "gallery"
	KindSlider       MetricKind = "slider"
	KindStopwatch    MetricKind = "stopwatch"
	KindTextField    MetricKind = "textfield"
	KindCalculation  MetricKind = "calculation"
)

// Metric is one typed form answer: a shared envelope plus a kind-specific
// payload. The zero Metric is invalid; Value must be non-nil.
type Metric struct {
	ID    int    `json:"id"`
	Title string `json:"title"`

	// Modified is set when a scouter touches the metric in the UI.
	// See UserEdited for the release-guard interpretation.
	Modified bool `json:"modified"`

	Value MetricValue `json:"-"`
}

// MetricValue is the closed variant payload. Implementations live in this
// file only; the unexported marker keeps the set closed.
type MetricValue interface {
	Kind() MetricKind
	metricValue()
}

type BooleanValue struct {
	Checked bool `json:"checked"`
}

// CheckboxValue holds an ordered option list with per-option checked state.
type CheckboxValue struct {
	Options []string `json:"options"`
	Checked []bool   `json:"checked"`
}

type ChooserValue struct {
	Options  []string `json:"options"`
	Selected int      `json:"selected"`
}

type CounterValue struct {
	Value     int `json:"value"`
	Increment int `json:"increment"`
}

// DividerValue is a visual separator; it carries no data.
type DividerValue struct{}

// FieldDataValue mirrors read-only match data from The Blue Alliance.
// It is never editable on this client and is stripped from QR payloads.
type FieldDataValue struct {
	Data json.RawMessage `json:"data,omitempty"`
}

type FieldDiagramValue struct {
	Season    int `json:"season"`
	PictureID int `json:"picture_id"`
}

// GalleryValue references pictures by local store ID. Images holds raw
// bytes only while a network batch payload is being packaged; it is empty
// at rest and stripped entirely for QR and peer transports.
type GalleryValue struct {
	PictureIDs []int    `json:"picture_ids"`
	Images     [][]byte `json:"images,omitempty"`
}

type SliderValue struct {
	Value int `json:"value"`
	Min   int `json:"min"`
	Max   int `json:"max"`
}

type StopwatchValue struct {
	Time float64   `json:"time"`
	Laps []float64 `json:"laps,omitempty"`
}

type TextFieldValue struct {
	Text string `json:"text"`
}

// CalculationValue is derived from other metrics and recomputed on demand.
type CalculationValue struct {
	Expression string  `json:"expression"`
	Value      float64 `json:"value"`
}

func (BooleanValue) Kind() MetricKind      { return KindBoolean }
func (CheckboxValue) Kind() MetricKind     { return KindCheckbox }
func (ChooserValue) Kind() MetricKind      { return KindChooser }
func (CounterValue) Kind() MetricKind      { return KindCounter }
func (DividerValue) Kind() MetricKind      { return KindDivider }
func (FieldDataValue) Kind() MetricKind    { return KindFieldData }
func (FieldDiagramValue) Kind() MetricKind { return KindFieldDiagram }
func (GalleryValue) Kind() MetricKind      { return KindGallery }
func (SliderValue) Kind() MetricKind       { return KindSlider }
func (StopwatchValue) Kind() MetricKind    { return KindStopwatch }
func (TextFieldValue) Kind() MetricKind    { return KindTextField }
func (CalculationValue) Kind() MetricKind  { return KindCalculation }

func (BooleanValue) metricValue()      {}
func (CheckboxValue) metricValue()     {}
func (ChooserValue) metricValue()      {}
func (CounterValue) metricValue()      {}
func (DividerValue) metricValue()      {}
func (FieldDataValue) metricValue()    {}
func (FieldDiagramValue) metricValue() {}
func (GalleryValue) metricValue()      {}
func (SliderValue) metricValue()       {}
func (StopwatchValue) metricValue()    {}
func (TextFieldValue) metricValue()    {}
func (CalculationValue) metricValue()  {}

// UserEdited reports whether the metric holds data a scouter entered.
// Calculations are derived and field data is read-only, so neither counts
// regardless of the modified flag. This is the release guard's input.
func (m Metric) UserEdited() bool {
	if m.Value == nil {
		return false
	}
	switch m.Value.Kind() {
	case KindCalculation, KindFieldData:
		return false
	}
	return m.Modified
}

// Clone returns a copy of the metric with its payload deep-copied.
func (m Metric) Clone() Metric {
	out := m
	switch v := m.Value.(type) {
	case CheckboxValue:
		v.Options = append([]string(nil), v.Options...)
		v.Checked = append([]bool(nil), v.Checked...)
		out.Value = v
	case ChooserValue:
		v.Options = append([]string(nil), v.Options...)
		out.Value = v
	case GalleryValue:
		v.PictureIDs = append([]int(nil), v.PictureIDs...)
		imgs := make([][]byte, len(v.Images))
		for i, b := range v.Images {
			imgs[i] = append([]byte(nil), b...)
		}
		v.Images = imgs
		out.Value = v
	case StopwatchValue:
		v.Laps = append([]float64(nil), v.Laps...)
		out.Value = v
	case FieldDataValue:
		v.Data = append(json.RawMessage(nil), v.Data...)
		out.Value = v
	}
	return out
}

// metricEnvelope is the wire/storage form of a Metric.
type metricEnvelope struct {
	Kind     MetricKind      `json:"kind"`
	ID       int             `json:"id"`
	Title    string          `json:"title"`
	Modified bool            `json:"modified"`
	Payload  json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the envelope with the payload nested under its kind tag.
func (m Metric) MarshalJSON() ([]byte, error) {
	if m.Value == nil {
		return nil, fmt.Errorf("metric %d %q: nil value", m.ID, m.Title)
	}
	payload, err := json.Marshal(m.Value)
	if err != nil {
		return nil, fmt.Errorf("marshal metric %d payload: %w", m.ID, err)
	}
	return json.Marshal(metricEnvelope{
		Kind:     m.Value.Kind(),
		ID:       m.ID,
		Title:    m.Title,
		Modified: m.Modified,
		Payload:  payload,
	})
}

// UnmarshalJSON decodes the envelope and dispatches on the kind tag.
// An unknown kind is an error: the variant set is closed.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var env metricEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode metric envelope: %w", err)
	}

	value, err := decodePayload(env.Kind, env.Payload)
	if err != nil {
		return err
	}

	m.ID = env.ID
	m.Title = env.Title
	m.Modified = env.Modified
	m.Value = value
	return nil
}

func decodePayload(kind MetricKind, payload json.RawMessage) (MetricValue, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	switch kind {
	case KindBoolean:
		return decodeAs[BooleanValue](kind, payload)
	case KindCheckbox:
		return decodeAs[CheckboxValue](kind, payload)
	case KindChooser:
		return decodeAs[ChooserValue](kind, payload)
	case KindCounter:
		return decodeAs[CounterValue](kind, payload)
	case KindDivider:
		return decodeAs[DividerValue](kind, payload)
	case KindFieldData:
		return decodeAs[FieldDataValue](kind, payload)
	case KindFieldDiagram:
		return decodeAs[FieldDiagramValue](kind, payload)
	case KindGallery:
		return decodeAs[GalleryValue](kind, payload)
	case KindSlider:
		return decodeAs[SliderValue](kind, payload)
	case KindStopwatch:
		return decodeAs[StopwatchValue](kind, payload)
	case KindTextField:
		return decodeAs[TextFieldValue](kind, payload)
	case KindCalculation:
		return decodeAs[CalculationValue](kind, payload)
	default:
		return nil, fmt.Errorf("unknown metric kind %q", kind)
	}
}

func decodeAs[T MetricValue](kind MetricKind, payload json.RawMessage) (MetricValue, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return v, nil
}
