package db

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppLogSinkRoundTripsArgvAndPayload(t *testing.T) {
	f, err := os.CreateTemp("", "applog-*.db")
	require.NoError(t, err)
	path := f.Name()
	require.NoError(t, f.Close())
	defer os.Remove(path)

	sink, err := OpenAppLog(path)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Propagate(0, []string{"HDEL", "k", "f"}, []byte{0x0a, 0x01, 0x6b}))
	require.NoError(t, sink.Propagate(0, []string{"DEL", "k"}, nil))

	var replayed [][]string
	require.NoError(t, sink.Replay(func(argv []string) error {
		replayed = append(replayed, argv)
		return nil
	}))

	require.Len(t, replayed, 2)
	assert.Equal(t, []string{"HDEL", "k", "f"}, replayed[0])
	assert.Equal(t, []string{"DEL", "k"}, replayed[1])
}

func TestEncodeDecodeAppLogRecordRoundTrip(t *testing.T) {
	argv := []string{"HDEL", "k", "f"}
	payload := []byte{0x0a, 0x01, 0x6b}

	rec := encodeAppLogRecord(argv, payload)
	gotArgv, gotPayload := decodeAppLogRecord(rec)
	assert.Equal(t, argv, gotArgv)
	assert.Equal(t, payload, gotPayload)
}
