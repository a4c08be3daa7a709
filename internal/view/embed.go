package view

import "github.com/kerosindigital/bsky.link/internal/model"

// Embed kinds as rendered by the templates. An unclassified embed has an
// empty Type.
const (
	EmbedRecord   = "record"
	EmbedImages   = "images"
	EmbedExternal = "external"
)

// Embed is a classified post embed. Exactly one payload field is set,
// matching Type.
type Embed struct {
	Type     string
	Record   *model.EmbedRecord
	Images   []model.Image
	External *model.External
}

// ClassifyPostEmbed picks the embed shown on a post page:
// record, then images, then external link.
func ClassifyPostEmbed(e *model.EmbedView) Embed {
	switch {
	case e == nil:
		return Embed{}
	case e.Record != nil:
		return Embed{Type: EmbedRecord, Record: e.Record}
	case e.Images != nil:
		return Embed{Type: EmbedImages, Images: e.Images}
	case e.External != nil:
		return Embed{Type: EmbedExternal, External: e.External}
	}
	return Embed{}
}

// ClassifyFeedEmbed picks the embed shown in a feed row: record, then
// images. A record that wraps another record (record with media) is
// unwrapped one level.
func ClassifyFeedEmbed(e *model.EmbedView) Embed {
	switch {
	case e == nil:
		return Embed{}
	case e.Record != nil:
		rec := e.Record
		if rec.Record != nil {
			rec = rec.Record
		}
		return Embed{Type: EmbedRecord, Record: rec}
	case e.Images != nil:
		return Embed{Type: EmbedImages, Images: e.Images}
	}
	return Embed{}
}
