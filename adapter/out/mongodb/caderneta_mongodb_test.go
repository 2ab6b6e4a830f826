package mongodb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("pag <num> merc pix "), 200)

	packed, err := compress(data)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(data))

	unpacked, err := decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, data, unpacked)
}

func TestDecompress_RejectsGarbage(t *testing.T) {
	_, err := decompress([]byte("not gzip"))
	assert.Error(t, err)
}
