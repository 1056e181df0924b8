package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCoordinates(t *testing.T) {
	t.Run("Valid coordinates", func(t *testing.T) {
		lat, lng, err := parseCoordinates("23.2599,77.4126")
		assert.NoError(t, err)
		assert.Equal(t, 23.2599, lat)
		assert.Equal(t, 77.4126, lng)
	})

	t.Run("Whitespace is tolerated", func(t *testing.T) {
		lat, lng, err := parseCoordinates(" 23.2599 , 77.4126 ")
		assert.NoError(t, err)
		assert.Equal(t, 23.2599, lat)
		assert.Equal(t, 77.4126, lng)
	})

	t.Run("Missing component fails", func(t *testing.T) {
		_, _, err := parseCoordinates("23.2599")
		assert.Error(t, err)
	})

	t.Run("Non-numeric fails", func(t *testing.T) {
		_, _, err := parseCoordinates("abc,77.4126")
		assert.Error(t, err)
	})

	t.Run("Out-of-range latitude fails", func(t *testing.T) {
		_, _, err := parseCoordinates("91,77.4126")
		assert.Error(t, err)
	})

	t.Run("Out-of-range longitude fails", func(t *testing.T) {
		_, _, err := parseCoordinates("23.2599,181")
		assert.Error(t, err)
	})
}
