package store

// FetchResult is what the document store resolved for a set of ids.
// Ids that do not exist or are not readable land in Missing.
type FetchResult struct {
	Documents map[string]Document
	Missing   []string
}

// Ordered returns the resolved documents following ids, skipping missing ones
func (r *FetchResult) Ordered(ids []string) []Document {
	out := make([]Document, 0, len(ids))
	if r == nil {
		return out
	}
	for _, id := range ids {
		if d, ok := r.Documents[CanonicalID(id)]; ok {
			out = append(out, d)
		}
	}
	return out
}

// TurnEvent is published after a turn completes successfully
type TurnEvent struct {
	SessionID string            `json:"session_id"`
	Owner     string            `json:"owner"`
	Turn      Turn              `json:"turn"`
	Result    *GenerationResult `json:"result"`
}
