package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestDecode_FullEnvelope(t *testing.T) {
	body := []byte(`{"data":{"data":[{"id":1,"name":"North"},{"id":2,"name":"South"}],
		"pagination":{"total":12,"per_page":2,"current_page":1,"last_page":6,"from":1,"to":2}}}`)

	result, err := Decode[row](body)
	require.NoError(t, err)

	assert.Equal(t, []row{{1, "North"}, {2, "South"}}, result.Items)
	assert.Equal(t, Meta{Total: 12, PerPage: 2, CurrentPage: 1, LastPage: 6, From: 1, To: 2}, result.Meta)
	assert.True(t, result.Meta.Known())
	assert.True(t, result.Meta.HasNext())
	assert.False(t, result.Meta.HasPrev())
}

func TestDecode_ShapeMismatchYieldsDefaults(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantItems []row
		wantMeta  Meta
	}{
		{name: "empty object", body: `{}`, wantItems: []row{}},
		{name: "empty data object", body: `{"data":{}}`, wantItems: []row{}},
		{name: "null data", body: `{"data":null}`, wantItems: []row{}},
		{name: "data is a string", body: `{"data":"oops"}`, wantItems: []row{}},
		{name: "data is an array", body: `{"data":[{"id":1}]}`, wantItems: []row{}},
		{name: "missing items", body: `{"data":{"pagination":{"last_page":3,"current_page":1}}}`, wantItems: []row{}, wantMeta: Meta{LastPage: 3, CurrentPage: 1}},
		{name: "null items", body: `{"data":{"data":null}}`, wantItems: []row{}},
		{name: "items is an object", body: `{"data":{"data":{"id":1}}}`, wantItems: []row{}},
		{name: "missing pagination", body: `{"data":{"data":[{"id":3,"name":"East"}]}}`, wantItems: []row{{3, "East"}}},
		{name: "pagination is a list", body: `{"data":{"data":[],"pagination":[1,2]}}`, wantItems: []row{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Decode[row]([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantItems, result.Items)
			assert.Equal(t, tt.wantMeta, result.Meta)
		})
	}
}

func TestDecode_NotAnObject(t *testing.T) {
	for _, body := range []string{``, `null`, `[1,2]`, `"text"`, `{broken`} {
		t.Run(body, func(t *testing.T) {
			result, err := Decode[row]([]byte(body))
			assert.ErrorIs(t, err, ErrNotObject)
			assert.Empty(t, result.Items)
			assert.NotNil(t, result.Items)
		})
	}
}

func TestMeta_Navigation(t *testing.T) {
	assert.False(t, Meta{}.Known())
	assert.False(t, Meta{}.HasNext(), "zero meta never has a next page")
	assert.True(t, Meta{CurrentPage: 2, LastPage: 3}.HasPrev())
	assert.False(t, Meta{CurrentPage: 3, LastPage: 3}.HasNext())
}

func TestDecodeItem(t *testing.T) {
	tests := []struct {
		name string
		body string
		want row
	}{
		{name: "envelope", body: `{"data":{"id":5,"name":"West"}}`, want: row{5, "West"}},
		{name: "bare object", body: `{"id":6,"name":"Central"}`, want: row{6, "Central"}},
		{name: "null data falls back to root", body: `{"id":7,"data":null}`, want: row{ID: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeItem[row]([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DecodeItem[row]([]byte(`[1]`))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []row
	}{
		{name: "bare array", body: `[{"id":1,"name":"North"}]`, want: []row{{1, "North"}}},
		{name: "wrapped array", body: `{"data":[{"id":2,"name":"South"}]}`, want: []row{{2, "South"}}},
		{name: "wrapped object", body: `{"data":{"id":2}}`, want: []row{}},
		{name: "missing data", body: `{}`, want: []row{}},
		{name: "mistyped array", body: `["a","b"]`, want: []row{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeList[row]([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
