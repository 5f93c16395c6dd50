package orderstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fernpay/paydesk/pkg/types"
)

func TestAttemptStatusAdvances(t *testing.T) {
	cases := []struct {
		from, to types.AttemptStatus
		want     bool
	}{
		{types.AttemptStatusCreated, types.AttemptStatusSubmitted, true},
		{types.AttemptStatusCreated, types.AttemptStatusFailed, true},
		{types.AttemptStatusSubmitted, types.AttemptStatusFailed, true},
		{types.AttemptStatusSubmitted, types.AttemptStatusCreated, false},
		{types.AttemptStatusFailed, types.AttemptStatusSubmitted, false},
		{types.AttemptStatusFailed, types.AttemptStatusCreated, false},
		{types.AttemptStatusCreated, types.AttemptStatusCreated, false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, attemptStatusAdvances(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestMapCreateErr_DuplicateKeyBecomesConflict(t *testing.T) {
	err := mapCreateErr(gorm.ErrDuplicatedKey)
	require.ErrorIs(t, err, ErrConflict)
}

func TestMapCreateErr_OtherErrorsPassThrough(t *testing.T) {
	cause := errors.New("connection reset")
	err := mapCreateErr(cause)
	require.False(t, errors.Is(err, ErrConflict))
	require.ErrorIs(t, err, cause)
}
