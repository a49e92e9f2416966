package dkg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWireRoundTripStorageRequest(t *testing.T) {
	p := StorageRequestPayload{Identifier: 5, ContentIdentifier: []byte("abcdefg"), Key: 20}
	decoded, err := Decode(Encode(p))
	require.NoError(t, err)
	got, ok := decoded.(StorageRequestPayload)
	require.True(t, ok)
	require.Equal(t, p, got)
}

func TestWireRoundTripStorageResponse(t *testing.T) {
	p := StorageResponsePayload{Identifier: 5, Accepted: true}
	decoded, err := Decode(Encode(p))
	require.NoError(t, err)
	require.Equal(t, p, decoded.(StorageResponsePayload))
}

func TestWireRoundTripTripletsRequest(t *testing.T) {
	p := TripletsRequestPayload{Identifier: 9, Content: []byte("abcdefg")}
	decoded, err := Decode(Encode(p))
	require.NoError(t, err)
	require.Equal(t, p, decoded.(TripletsRequestPayload))
}

func TestDecodeUnknownMsgID(t *testing.T) {
	_, err := Decode([]byte{200})
	require.Error(t, err)
}

func TestEncodeTripletsRoundTrip(t *testing.T) {
	triplets := []Triplet{
		{Head: []byte("abcdefg"), Relation: []byte("b"), Tail: []byte("c"), Rules: []string{"DUMMY"}},
		{Head: []byte("x"), Relation: []byte("y"), Tail: []byte("z"), Rules: []string{"A", "B"}},
	}
	payload := TripletsPayload{Triplets: make([]TripletPayload, len(triplets))}
	for i, tr := range triplets {
		payload.Triplets[i] = tr.ToPayload()
	}

	decoded, err := DecodeTriplets(EncodeTriplets(payload))
	require.NoError(t, err)
	require.Len(t, decoded.Triplets, 2)
	for i, tp := range decoded.Triplets {
		require.True(t, FromPayload(tp).Equal(triplets[i]))
	}
}

func TestEncodeTripletsEmptyBatch(t *testing.T) {
	decoded, err := DecodeTriplets(EncodeTriplets(TripletsPayload{}))
	require.NoError(t, err)
	require.Empty(t, decoded.Triplets)
}

func TestBlobInfoRoundTrip(t *testing.T) {
	storeInfo := encodeStoreInfo([]byte("abcdefg"))
	decoded, err := decodeBlobInfo(storeInfo)
	require.NoError(t, err)
	require.Equal(t, blobTypeStore, decoded.Type)
	require.Nil(t, decoded.ID)

	searchInfo := encodeSearchResponseInfo(42, []byte("abcdefg"))
	decoded, err = decodeBlobInfo(searchInfo)
	require.NoError(t, err)
	require.Equal(t, blobTypeSearchResponse, decoded.Type)
	require.NotNil(t, decoded.ID)
	require.Equal(t, 42, *decoded.ID)
}
