package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromIssue(t *testing.T) {
	issue := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

	require.Equal(t, "26/03", FromIssue(issue, 1))
	require.Equal(t, "30/03", FromIssue(issue, 5))
}

func TestFromIssue_CenturyWrap(t *testing.T) {
	issue := time.Date(2099, time.December, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "00/12", FromIssue(issue, 1))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("26/03"))
	require.NoError(t, Validate("00/12"))

	require.Error(t, Validate(""))
	require.Error(t, Validate("2603"))
	require.Error(t, Validate("26-03"))
	require.Error(t, Validate("26/13"))
	require.Error(t, Validate("26/00"))
	require.Error(t, Validate("2x/03"))
}

func TestIsExpired(t *testing.T) {
	loc := time.UTC

	expired, err := IsExpired("26/03", time.Date(2026, time.March, 31, 23, 0, 0, 0, loc), loc)
	require.NoError(t, err)
	require.False(t, expired, "last day of the expiry month is still valid")

	expired, err = IsExpired("26/03", time.Date(2026, time.April, 1, 0, 0, 1, 0, loc), loc)
	require.NoError(t, err)
	require.True(t, expired)

	_, err = IsExpired("bogus", time.Now(), loc)
	require.Error(t, err)
}
