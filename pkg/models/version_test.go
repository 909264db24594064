package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("2.10.3")
	require.NoError(t, err)
	assert.Equal(t, ModelVersion{Major: 2, Minor: 10, Patch: 3}, v)
	assert.Equal(t, "2.10.3", v.String())
}

func TestParseVersionRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "1.2", "1.2.3.4", "a.b.c", "1.-2.3", "1.2.x"} {
		_, err := ParseVersion(s)
		assert.Error(t, err, "expected %q to be rejected", s)
	}
}

func TestVersionOrdering(t *testing.T) {
	ordered := []ModelVersion{
		{1, 0, 0},
		{1, 0, 1},
		{1, 0, 10},
		{1, 1, 0},
		{1, 2, 0},
		{2, 0, 0},
	}
	for i := 1; i < len(ordered); i++ {
		assert.True(t, ordered[i-1].Less(ordered[i]),
			"%s should order before %s", ordered[i-1], ordered[i])
		assert.Equal(t, 1, ordered[i].Compare(ordered[i-1]))
	}
	assert.Equal(t, 0, ordered[0].Compare(ModelVersion{1, 0, 0}))
}

func TestVersionIncrementsReset(t *testing.T) {
	v := ModelVersion{Major: 1, Minor: 4, Patch: 7}

	assert.Equal(t, ModelVersion{1, 4, 8}, v.IncrementPatch())
	assert.Equal(t, ModelVersion{1, 5, 0}, v.IncrementMinor())
	assert.Equal(t, ModelVersion{2, 0, 0}, v.IncrementMajor())

	// increments never mutate the receiver
	assert.Equal(t, ModelVersion{1, 4, 7}, v)
}

func TestVersionBump(t *testing.T) {
	v := ModelVersion{Major: 1, Minor: 2, Patch: 3}
	assert.Equal(t, ModelVersion{2, 0, 0}, v.Bump(BumpMajor))
	assert.Equal(t, ModelVersion{1, 3, 0}, v.Bump(BumpMinor))
	assert.Equal(t, ModelVersion{1, 2, 4}, v.Bump(BumpPatch))
}

func TestVersionJSONIsString(t *testing.T) {
	data, err := json.Marshal(ModelVersion{Major: 1, Minor: 2, Patch: 3})
	require.NoError(t, err)
	assert.Equal(t, `"1.2.3"`, string(data))

	var v ModelVersion
	require.NoError(t, json.Unmarshal([]byte(`"4.5.6"`), &v))
	assert.Equal(t, ModelVersion{4, 5, 6}, v)

	assert.Error(t, json.Unmarshal([]byte(`"not-a-version"`), &v))
}
