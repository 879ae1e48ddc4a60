package wire

import "encoding/json"

// opaqueKinds round-trip through Raw instead of through named fields:
// this client never inspects their payload, only forwards it.
var opaqueKinds = map[ContentBlockKind]bool{
	BlockImage:           true,
	BlockDocument:        true,
	BlockWebSearchResult: true,
}

// MarshalJSON emits Raw verbatim for opaque kinds and the named fields
// otherwise.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	if opaqueKinds[b.Kind] && len(b.Raw) > 0 {
		return b.Raw, nil
	}
	type alias ContentBlock
	return json.Marshal(alias(b))
}

// UnmarshalJSON decodes the named fields and additionally captures the
// full payload into Raw when Kind is an opaque kind, so it can be
// forwarded unchanged in a later request.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	type alias ContentBlock
	if err := json.Unmarshal(data, (*alias)(b)); err != nil {
		return err
	}
	if opaqueKinds[b.Kind] {
		b.Raw = append(json.RawMessage(nil), data...)
	}
	return nil
}
