package xvi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScanTime(t *testing.T) {
	uid := "1.3.46.423632.33783920233217242713.224.2023-03-21165402768"

	got, ok := ParseScanTime(uid)
	require.True(t, ok)

	want := time.Date(2023, time.March, 21, 16, 54, 2, 768*int(time.Millisecond), time.UTC)
	assert.True(t, got.Equal(want), "got %v, want %v", got, want)
}

func TestParseScanTimeNoSuffix(t *testing.T) {
	_, ok := ParseScanTime("1.3.46.423632.33783920233217242713.224")
	assert.False(t, ok)
}

func TestParseScanTimeMustBeAtEnd(t *testing.T) {
	_, ok := ParseScanTime("2023-03-21165402768.trailing")
	assert.False(t, ok)
}

func TestParseScanTimeImpossibleCalendar(t *testing.T) {
	// Month 13 normalizes to January of the next year; that must read
	// as absence, not a shifted date.
	_, ok := ParseScanTime("1.2.3.2023-13-21165402768")
	assert.False(t, ok)

	// Hour 99 rolls into following days.
	_, ok = ParseScanTime("1.2.3.2023-03-21995402768")
	assert.False(t, ok)
}

func TestParseScanTimeEmpty(t *testing.T) {
	_, ok := ParseScanTime("")
	assert.False(t, ok)
}
