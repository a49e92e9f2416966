package dkg

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// TripletPayload is the wire form of one Triplet.
type TripletPayload struct {
	Head     []byte
	Relation []byte
	Tail     []byte
	Rules    [][]byte
}

// TripletsPayload is the wire form of a batch of triplets, the body
// transferred over the large-binary channel.
type TripletsPayload struct {
	Triplets []TripletPayload
}

// ToPayload converts a Triplet to its wire form.
func (t Triplet) ToPayload() TripletPayload {
	rules := make([][]byte, len(t.Rules))
	for i, r := range t.Rules {
		rules[i] = []byte(r)
	}
	return TripletPayload{Head: t.Head, Relation: t.Relation, Tail: t.Tail, Rules: rules}
}

// FromPayload converts a wire-form triplet back into a Triplet.
func FromPayload(p TripletPayload) Triplet {
	rules := make([]string, len(p.Rules))
	for i, r := range p.Rules {
		rules[i] = string(r)
	}
	return Triplet{Head: p.Head, Relation: p.Relation, Tail: p.Tail, Rules: rules}
}

// EncodeTriplets serializes a batch of triplets for the blob channel: a
// 4-byte count followed by each triplet's head/relation/tail/rules, each
// varlenH-framed.
func EncodeTriplets(p TripletsPayload) []byte {
	w := &writer{}
	w.u32(uint32(len(p.Triplets)))
	for _, t := range p.Triplets {
		w.varlenH(t.Head)
		w.varlenH(t.Relation)
		w.varlenH(t.Tail)
		w.u32(uint32(len(t.Rules)))
		for _, rule := range t.Rules {
			w.varlenH(rule)
		}
	}
	return w.bytes()
}

// DecodeTriplets is the inverse of EncodeTriplets.
func DecodeTriplets(data []byte) (TripletsPayload, error) {
	r := newReader(data)
	count, err := r.u32()
	if err != nil {
		return TripletsPayload{}, err
	}
	out := TripletsPayload{Triplets: make([]TripletPayload, 0, count)}
	for i := uint32(0); i < count; i++ {
		var t TripletPayload
		if t.Head, err = r.varlenH(); err != nil {
			return TripletsPayload{}, err
		}
		if t.Relation, err = r.varlenH(); err != nil {
			return TripletsPayload{}, err
		}
		if t.Tail, err = r.varlenH(); err != nil {
			return TripletsPayload{}, err
		}
		var n uint32
		if n, err = r.u32(); err != nil {
			return TripletsPayload{}, err
		}
		t.Rules = make([][]byte, n)
		for j := uint32(0); j < n; j++ {
			if t.Rules[j], err = r.varlenH(); err != nil {
				return TripletsPayload{}, err
			}
		}
		out.Triplets = append(out.Triplets, t)
	}
	return out, nil
}

// blobInfo is the JSON info header accompanying every blob transfer:
// {"type": "store"|"search_response", "id"?: int, "cid": hex}.
type blobInfo struct {
	Type string `json:"type"`
	ID   *int   `json:"id,omitempty"`
	CID  string `json:"cid"`
}

const (
	blobTypeStore          = "store"
	blobTypeSearchResponse = "search_response"
)

func encodeStoreInfo(cid []byte) []byte {
	b, _ := json.Marshal(blobInfo{Type: blobTypeStore, CID: hex.EncodeToString(cid)})
	return b
}

func encodeSearchResponseInfo(id uint32, cid []byte) []byte {
	n := int(id)
	b, _ := json.Marshal(blobInfo{Type: blobTypeSearchResponse, ID: &n, CID: hex.EncodeToString(cid)})
	return b
}

func decodeBlobInfo(data []byte) (blobInfo, error) {
	var info blobInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return blobInfo{}, fmt.Errorf("dkg: malformed blob info header: %w", err)
	}
	return info, nil
}
