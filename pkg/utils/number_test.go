package utils

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func TestFlexNumbers(t *testing.T) {
	var payload struct {
		A FlexInt     `json:"a"`
		B FlexInt     `json:"b"`
		C FlexInt     `json:"c"`
		D FlexInt     `json:"d"`
		E FlexDecimal `json:"e"`
		F FlexDecimal `json:"f"`
		G FlexDecimal `json:"g"`
		H FlexString  `json:"h"`
		I FlexString  `json:"i"`
	}

	body := `{"a": 10, "b": "20", "c": "3.0", "d": null, "e": 12.5, "f": "0.35", "g": "", "h": 9573, "i": "abc"}`
	require.NoError(t, json.Unmarshal([]byte(body), &payload))

	assert.Equal(t, int64(10), payload.A.Int64())
	assert.Equal(t, int64(20), payload.B.Int64())
	assert.Equal(t, int64(3), payload.C.Int64())
	assert.Equal(t, int64(0), payload.D.Int64())
	assert.Equal(t, "12.5", payload.E.String())
	assert.Equal(t, "0.35", payload.F.String())
	assert.True(t, payload.G.IsZero())
	assert.Equal(t, "9573", payload.H.String())
	assert.Equal(t, "abc", payload.I.String())
}

func TestFlexInt_Invalid(t *testing.T) {
	var n FlexInt
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &n))
}
