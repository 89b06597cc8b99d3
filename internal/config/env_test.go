package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hexfog/hexfog/internal/config"
)

func TestString(t *testing.T) {
	t.Setenv("HEXFOG_TEST_STRING", "value")

	assert.Equal(t, "value", config.String("HEXFOG_TEST_STRING", "default"))
	assert.Equal(t, "default", config.String("HEXFOG_TEST_UNSET", "default"))
}

func TestInt(t *testing.T) {
	t.Setenv("HEXFOG_TEST_INT", "42")
	t.Setenv("HEXFOG_TEST_BAD_INT", "forty-two")

	assert.Equal(t, 42, config.Int("HEXFOG_TEST_INT", 7))
	assert.Equal(t, 7, config.Int("HEXFOG_TEST_BAD_INT", 7))
	assert.Equal(t, 7, config.Int("HEXFOG_TEST_UNSET", 7))
}

func TestFloat(t *testing.T) {
	t.Setenv("HEXFOG_TEST_FLOAT", "0.75")

	assert.InDelta(t, 0.75, config.Float("HEXFOG_TEST_FLOAT", 0.5), 1e-9)
	assert.InDelta(t, 0.5, config.Float("HEXFOG_TEST_UNSET", 0.5), 1e-9)
}

func TestDuration(t *testing.T) {
	t.Setenv("HEXFOG_TEST_DURATION", "90s")

	assert.Equal(t, 90*time.Second, config.Duration("HEXFOG_TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, config.Duration("HEXFOG_TEST_UNSET", time.Minute))
}

func TestBool(t *testing.T) {
	t.Setenv("HEXFOG_TEST_BOOL", "true")

	t.Setenv("HEXFOG_TEST_BOOL_OFF", "0")
	t.Setenv("HEXFOG_TEST_BOOL_BAD", "yes please")

	assert.True(t, config.Bool("HEXFOG_TEST_BOOL", false))
	assert.False(t, config.Bool("HEXFOG_TEST_BOOL_OFF", true))
	assert.True(t, config.Bool("HEXFOG_TEST_BOOL_BAD", true))
	assert.False(t, config.Bool("HEXFOG_TEST_UNSET", false))
}
