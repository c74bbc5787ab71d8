package ml

import (
	"encoding/json"
	"fmt"
	"sort"
)

// LabelEncoder maps category labels to dense zero-based integer codes.
// Codes follow the sorted order of the distinct values seen during Fit,
// so identical training data always yields identical codes.
type LabelEncoder struct {
	field   string
	classes []string
	index   map[string]int
	fitted  bool
}

// NewLabelEncoder creates an encoder. The field name is used in error
// messages for unknown values.
func NewLabelEncoder(field string) *LabelEncoder {
	return &LabelEncoder{field: field}
}

// Fit learns the sorted-unique mapping from the given values.
func (e *LabelEncoder) Fit(values []string) {
	seen := make(map[string]bool, len(values))
	classes := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	e.classes = classes
	e.index = index
	e.fitted = true
}

// Transform encodes values to their learned codes.
func (e *LabelEncoder) Transform(values []string) ([]int, error) {
	if !e.fitted {
		return nil, fmt.Errorf("%s encoder: %w", e.field, ErrNotFitted)
	}

	codes := make([]int, len(values))
	for i, v := range values {
		code, ok := e.index[v]
		if !ok {
			return nil, &UnknownCategoryError{Field: e.field, Value: v}
		}
		codes[i] = code
	}
	return codes, nil
}

// TransformOne encodes a single value.
func (e *LabelEncoder) TransformOne(value string) (int, error) {
	codes, err := e.Transform([]string{value})
	if err != nil {
		return 0, err
	}
	return codes[0], nil
}

// Inverse maps codes back to their original labels.
func (e *LabelEncoder) Inverse(codes []int) ([]string, error) {
	if !e.fitted {
		return nil, fmt.Errorf("%s encoder: %w", e.field, ErrNotFitted)
	}

	values := make([]string, len(codes))
	for i, code := range codes {
		if code < 0 || code >= len(e.classes) {
			return nil, fmt.Errorf("%s encoder: %w: code %d out of range", e.field, ErrInvalidArgument, code)
		}
		values[i] = e.classes[code]
	}
	return values, nil
}

// Classes returns the learned labels in code order.
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Fitted reports whether Fit has been called.
func (e *LabelEncoder) Fitted() bool {
	return e.fitted
}

type labelEncoderState struct {
	Field   string   `json:"field"`
	Classes []string `json:"classes"`
	Fitted  bool     `json:"fitted"`
}

// MarshalJSON serializes the learned mapping.
func (e *LabelEncoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(labelEncoderState{
		Field:   e.field,
		Classes: e.classes,
		Fitted:  e.fitted,
	})
}

// UnmarshalJSON restores the learned mapping.
func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	var state labelEncoderState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}

	e.field = state.Field
	e.classes = state.Classes
	e.fitted = state.Fitted
	e.index = make(map[string]int, len(state.Classes))
	for i, c := range state.Classes {
		e.index[c] = i
	}
	return nil
}
