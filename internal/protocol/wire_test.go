package protocol

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	cases := []Request{
		SetRequest("key", "value"),
		GetRequest("key"),
		RemoveRequest("key"),
		SetRequest("", ""),
	}

	for _, want := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteRequest(&buf, want))

		got, err := ReadRequest(bufio.NewReader(&buf))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	cases := []Response{
		OkNone(),
		OkValue("hello"),
		OkValue("Key not found"),
		ErrResponse("Key not found"),
		ErrResponse("boom"),
	}

	for _, want := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteResponse(&buf, want))

		got, err := ReadResponse(bufio.NewReader(&buf))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestReadRequestTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, SetRequest("k", "v")))

	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := ReadRequest(bufio.NewReader(bytes.NewReader(truncated)))
	require.Error(t, err)
}
