package srp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSRPExchangeMatchingPassword checks that a
// full M1-M4 SRP exchange with matching credentials must yield identical
// premaster secrets and verifying proofs on both sides.
func TestSRPExchangeMatchingPassword(t *testing.T) {
	group := Group2048
	identity := []byte("airplay-controller")
	password := []byte("3939")
	salt := []byte{0x01, 0x02, 0x03, 0x04}

	x := ComputeX(identity, password, salt)
	verifier := ComputeVerifier(group, x)

	client, err := NewClientEphemeral(group)
	require.NoError(t, err)
	server, err := NewServerEphemeral(group, verifier)
	require.NoError(t, err)

	clientPremaster, m1, err := ClientPremaster(client, x, server.Public())
	require.NoError(t, err)

	serverPremaster, err := ServerPremaster(server, client.Public())
	require.NoError(t, err)

	require.Equal(t, 0, clientPremaster.Cmp(serverPremaster), "premaster secrets must match")

	m2, ok := VerifyClientProof(group, client.Public(), server.Public(), serverPremaster, m1)
	require.True(t, ok, "server must accept a valid client proof")

	require.True(t, VerifyServerProof(group, client.Public(), m1, clientPremaster, m2))
}

// TestSRPExchangeWrongPassword checks that a
// client computing x from the wrong password must fail the server's proof
// check.
func TestSRPExchangeWrongPassword(t *testing.T) {
	group := Group2048
	identity := []byte("airplay-controller")
	salt := []byte{0x01, 0x02, 0x03, 0x04}

	serverX := ComputeX(identity, []byte("3939"), salt)
	verifier := ComputeVerifier(group, serverX)

	clientX := ComputeX(identity, []byte("0000"), salt)

	client, err := NewClientEphemeral(group)
	require.NoError(t, err)
	server, err := NewServerEphemeral(group, verifier)
	require.NoError(t, err)

	_, m1, err := ClientPremaster(client, clientX, server.Public())
	require.NoError(t, err)

	serverPremaster, err := ServerPremaster(server, client.Public())
	require.NoError(t, err)

	_, ok := VerifyClientProof(group, client.Public(), server.Public(), serverPremaster, m1)
	require.False(t, ok, "server must reject a proof derived from the wrong password")
}
