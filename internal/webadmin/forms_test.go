// ABOUTME: Tests for the race list and plural helpers used by pane forms
// ABOUTME: Covers ranges, duplicates, bad input, division choices and the inverse formatting

package webadmin

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techscore/techscore/internal/regatta"
)

func TestParseNumbers(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"", nil},
		{"3", []int{3}},
		{"1-3, 5", []int{1, 2, 3, 5}},
		{"7 1;2", []int{1, 2, 7}},
		{"1-3,2-4", []int{1, 2, 3, 4}},
		{"98-99", []int{98, 99}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseNumbers(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseNumbers_Invalid(t *testing.T) {
	for _, in := range []string{"a", "0", "3-1", "1-x", "-2", "100", "1-100", "1-9223372036854775807"} {
		_, err := parseNumbers(in)
		assert.ErrorIs(t, err, errBadForm, in)
	}
}

func TestFormatNumbers(t *testing.T) {
	assert.Equal(t, "", formatNumbers(nil))
	assert.Equal(t, "4", formatNumbers([]int{4}))
	assert.Equal(t, "1-3, 5, 7-8", formatNumbers([]int{8, 1, 2, 3, 5, 7}))
	assert.Equal(t, "1-2", formatNumbers([]int{1, 1, 2}))
}

func TestFormatNumbers_RoundTrip(t *testing.T) {
	nums := []int{1, 2, 3, 6, 9, 10}
	got, err := parseNumbers(formatNumbers(nums))
	require.NoError(t, err)
	assert.Equal(t, nums, got)
}

func TestFormDivisions(t *testing.T) {
	reg := &regatta.Regatta{Divisions: []regatta.Division{regatta.DivisionA, regatta.DivisionB}}
	read := func(values ...string) ([]regatta.Division, error) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Form = url.Values{"division": values}
		return formDivisions(r, reg)
	}

	got, err := read()
	require.NoError(t, err)
	assert.Equal(t, reg.Divisions, got)

	got, err = read("B", "A", "B", "b")
	require.NoError(t, err)
	assert.Equal(t, []regatta.Division{regatta.DivisionB, regatta.DivisionA}, got)

	_, err = read("C")
	assert.ErrorIs(t, err, errBadForm)
}

func TestEnglishRaces(t *testing.T) {
	assert.Equal(t, "1 race", englishRaces(1))
	assert.Equal(t, "4 races", englishRaces(4))
}
