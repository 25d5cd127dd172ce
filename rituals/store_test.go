package rituals

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorePutTranscriptIdempotent(t *testing.T) {
	s := NewStore()
	s.PutTranscript(1, 0, []byte("a"))
	s.PutTranscript(1, 0, []byte("b"))
	require.Equal(t, map[int][]byte{0: []byte("a")}, s.Transcripts(1))
}

func TestStoreHasTranscript(t *testing.T) {
	s := NewStore()
	require.False(t, s.HasTranscript(1, 0))
	s.PutTranscript(1, 0, []byte("a"))
	require.True(t, s.HasTranscript(1, 0))
}
