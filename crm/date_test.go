package crm_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/crm-engine/crm"
)

func TestParseDay_CalendarDate(t *testing.T) {
	loc := time.FixedZone("X", 5*60*60)

	d, err := crm.ParseDay("2024-01-10", loc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, loc), d)
}

func TestParseDay_TimestampMovesIntoLocation(t *testing.T) {
	// GIVEN: 01:00 UTC on Jan 11, read in UTC-3 (still Jan 10 there)
	loc := time.FixedZone("BRT", -3*60*60)

	d, err := crm.ParseDay("2024-01-11T01:00:00Z", loc)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-10", crm.FormatDay(d))
	assert.Equal(t, 0, d.Hour())
}

func TestParseDay_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "tomorrow", "2024-13-01", "2024/01/10"} {
		_, err := crm.ParseDay(raw, time.UTC)
		assert.ErrorIs(t, err, crm.ErrInvalidDate, "input %q", raw)
	}
}

func TestParseDay_NilLocation(t *testing.T) {
	d, err := crm.ParseDay("2024-01-10", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Local, d.Location())
}

func TestStartOfDay(t *testing.T) {
	in := time.Date(2024, 5, 6, 18, 42, 7, 99, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), crm.StartOfDay(in))
}

func TestValidDate(t *testing.T) {
	assert.True(t, crm.ValidDate("2024-02-29"))
	assert.True(t, crm.ValidDate("2024-02-28T10:00:00Z"))
	assert.False(t, crm.ValidDate("2023-02-29"))
	assert.False(t, crm.ValidDate(""))
}
