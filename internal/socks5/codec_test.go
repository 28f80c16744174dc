package socks5

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadGreeting(t *testing.T) {
	cases := []struct {
		name    string
		wire    []byte
		want    []AuthMethod
		wantErr error
	}{
		{
			name: "single noauth",
			wire: []byte{0x05, 0x01, 0x00},
			want: []AuthMethod{NoAuth},
		},
		{
			name: "noauth and userpass",
			wire: []byte{0x05, 0x02, 0x00, 0x02},
			want: []AuthMethod{NoAuth, UserPass},
		},
		{
			name:    "wrong version",
			wire:    []byte{0x04, 0x01, 0x00},
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "zero methods",
			wire:    []byte{0x05, 0x00},
			wantErr: ErrTruncatedInput,
		},
		{
			name:    "truncated methods",
			wire:    []byte{0x05, 0x02, 0x00},
			wantErr: ErrTruncatedInput,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := ReadGreeting(bytes.NewReader(tc.wire))
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, g.Methods)
		})
	}
}

func TestParseAuthMethod_FFDecodesToNoMethods(t *testing.T) {
	m := ParseAuthMethod(0xFF)
	assert.Equal(t, KindNoMethods, m.Kind())
	assert.Equal(t, NoMethods, m)
}

func TestWriteMethodSelection(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMethodSelection(&buf, UserPass))
	assert.Equal(t, []byte{0x05, 0x02}, buf.Bytes())
}

func TestUserPassRequestRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		username []byte
		password []byte
	}{
		{name: "typical", username: []byte("alice"), password: []byte("hunter2")},
		{name: "zero length username", username: []byte{}, password: []byte("pw")},
		{name: "zero length password", username: []byte("alice"), password: []byte{}},
		{name: "max length fields", username: bytes.Repeat([]byte("a"), 255), password: bytes.Repeat([]byte("b"), 255)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			buf.WriteByte(authVersion)
			buf.WriteByte(byte(len(tc.username)))
			buf.Write(tc.username)
			buf.WriteByte(byte(len(tc.password)))
			buf.Write(tc.password)

			req, err := ReadUserPassRequest(&buf)
			require.NoError(t, err)
			assert.Equal(t, tc.username, req.Username)
			assert.Equal(t, tc.password, req.Password)
		})
	}
}

func TestReadUserPassRequest_WrongAuthVersion(t *testing.T) {
	_, err := ReadUserPassRequest(bytes.NewReader([]byte{0x05, 0x00, 0x00}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedVersion))
}

func TestWriteUserPassReply(t *testing.T) {
	var ok, denied bytes.Buffer
	require.NoError(t, WriteUserPassReply(&ok, true))
	require.NoError(t, WriteUserPassReply(&denied, false))
	assert.Equal(t, []byte{authVersion, 0x00}, ok.Bytes())
	assert.Equal(t, []byte{authVersion, 0x01}, denied.Bytes())
}

func TestReadRequest(t *testing.T) {
	wire := []byte{0x05, 0x01, 0x00, 0x01, 93, 184, 216, 34, 0x00, 0x50}
	req, err := ReadRequest(bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, CmdConnect, req.Command)
	assert.Equal(t, ATYPV4, req.Dest.Type)
	assert.Equal(t, uint16(80), req.Dest.Port)
}

func TestReadRequest_UnsupportedCommandStillConsumesAddress(t *testing.T) {
	// BIND with a full trailing address; ReadRequest must succeed so the
	// caller can classify the command *after* draining the socket.
	wire := []byte{0x05, 0x02, 0x00, 0x01, 10, 0, 0, 1, 0x01, 0xBB}
	req, err := ReadRequest(bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, CmdBind, req.Command)
}

func TestReadRequest_InvalidCommand(t *testing.T) {
	wire := []byte{0x05, 0x7F, 0x00, 0x01, 10, 0, 0, 1, 0x00, 0x50}
	_, err := ReadRequest(bytes.NewReader(wire))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedCommand))
}

func TestWriteReply_SuccessIsFullRFC1928Form(t *testing.T) {
	var buf bytes.Buffer
	bound := NewIPAddress([]byte{127, 0, 0, 1}, 1080)
	require.NoError(t, WriteReply(&buf, ReplySuccess, bound))

	want := []byte{Version, byte(ReplySuccess), reserved, byte(ATYPV4), 127, 0, 0, 1, 0x04, 0x38}
	assert.Equal(t, want, buf.Bytes())
}

func TestWriteReply_ZeroAddressDefaultsToV4Zero(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReply(&buf, ReplySuccess, Address{}))
	assert.Len(t, buf.Bytes(), 10)
	assert.Equal(t, byte(ATYPV4), buf.Bytes()[3])
}

func TestWriteFailureReply_IsCompactTwoBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFailureReply(&buf, ReplyHostUnreachable))
	assert.Equal(t, []byte{Version, byte(ReplyHostUnreachable)}, buf.Bytes())
}
