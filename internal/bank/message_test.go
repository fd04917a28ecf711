package bank

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage(`{"kind":"deposit"}`)
	require.NoError(t, err)
	require.Equal(t, KindDeposit, msg.Kind)

	msg, err = ParseMessage(`{"kind":"withdrawal","memo":"rent"}`)
	require.NoError(t, err)
	require.Equal(t, KindWithdrawal, msg.Kind)

	msg, err = ParseMessage(`{"kind":"transfer"}`)
	require.NoError(t, err)
	require.Equal(t, Kind("transfer"), msg.Kind)

	for _, raw := range []string{"", "nice", "null", "42", `["deposit"]`, `{}`, `{"kind":null}`, `{"kind":""}`} {
		_, err := ParseMessage(raw)
		require.ErrorIs(t, err, ErrMalformedMessage, raw)
	}
}

func TestEncodeMessageRoundTrip(t *testing.T) {
	require.Equal(t, `{"kind":"withdrawal"}`, EncodeMessage(KindWithdrawal))
	msg, err := ParseMessage(EncodeMessage(KindDeposit))
	require.NoError(t, err)
	require.Equal(t, KindDeposit, msg.Kind)
}
