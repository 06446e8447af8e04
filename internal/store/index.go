package store

import "github.com/digital-stage/client-go/internal/domain"

// Index maps a parent or listener id to the ordered set of child ids.
// Every id kept here is also a key of the owning collection's ByID.
type Index map[domain.ID][]domain.ID

func (ix Index) add(key, id domain.ID) Index {
	if key == "" {
		return ix
	}
	out := make(Index, len(ix)+1)
	for k, v := range ix {
		out[k] = v
	}
	out[key] = appendID(out[key], id)
	return out
}

func (ix Index) remove(key, id domain.ID) Index {
	bucket, ok := ix[key]
	if !ok {
		return ix
	}
	out := make(Index, len(ix))
	for k, v := range ix {
		out[k] = v
	}
	stripped := removeID(bucket, id)
	if len(stripped) == 0 {
		delete(out, key)
	} else {
		out[key] = stripped
	}
	return out
}

// PairKey identifies one (listening device, override target) pair.
type PairKey struct {
	Device domain.ID
	Target domain.ID
}

// PairIndex maps a pair to exactly one override id.
type PairIndex map[PairKey]domain.ID

func (px PairIndex) put(key PairKey, id domain.ID) PairIndex {
	out := make(PairIndex, len(px)+1)
	for k, v := range px {
		out[k] = v
	}
	out[key] = id
	return out
}

func (px PairIndex) delete(key PairKey) PairIndex {
	if _, ok := px[key]; !ok {
		return px
	}
	out := make(PairIndex, len(px))
	for k, v := range px {
		if k != key {
			out[k] = v
		}
	}
	return out
}
