package bsky

import (
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"

	"github.com/kerosindigital/bsky.link/internal/model"
)

// Lexicon $type values carried into the view model.
const (
	typeThreadViewPost = "app.bsky.feed.defs#threadViewPost"
	typeNotFoundPost   = "app.bsky.feed.defs#notFoundPost"
	typeBlockedPost    = "app.bsky.feed.defs#blockedPost"
	typeFeedPost       = "app.bsky.feed.post"
	typeRecordView     = "app.bsky.embed.record#view"
	typeViewRecord     = "app.bsky.embed.record#viewRecord"
	typeRecordMedia    = "app.bsky.embed.recordWithMedia#view"
	typeImagesView     = "app.bsky.embed.images#view"
	typeExternalView   = "app.bsky.embed.external#view"
)

// threadNode maps one member of a thread union. The three generated union
// types (root, parent, reply) share these variants.
func threadNode(tv *appbsky.FeedDefs_ThreadViewPost, nf *appbsky.FeedDefs_NotFoundPost, bl *appbsky.FeedDefs_BlockedPost) *model.ThreadNode {
	switch {
	case tv != nil:
		n := &model.ThreadNode{Type: typeThreadViewPost}
		if tv.Post != nil {
			n.Post = postView(tv.Post)
		}
		if p := tv.Parent; p != nil {
			n.Parent = threadNode(p.FeedDefs_ThreadViewPost, p.FeedDefs_NotFoundPost, p.FeedDefs_BlockedPost)
		}
		for _, r := range tv.Replies {
			if r == nil {
				continue
			}
			if child := threadNode(r.FeedDefs_ThreadViewPost, r.FeedDefs_NotFoundPost, r.FeedDefs_BlockedPost); child != nil {
				n.Replies = append(n.Replies, child)
			}
		}
		return n
	case nf != nil:
		return &model.ThreadNode{Type: typeNotFoundPost, NotFound: true}
	case bl != nil:
		return &model.ThreadNode{Type: typeBlockedPost, Blocked: true}
	}
	return nil
}

func postView(pv *appbsky.FeedDefs_PostView) *model.PostView {
	out := &model.PostView{
		URI:         pv.Uri,
		CID:         pv.Cid,
		Author:      author(pv.Author),
		Record:      postRecord(pv.Record),
		Embed:       embedView(pv.Embed),
		ReplyCount:  count(pv.ReplyCount),
		RepostCount: count(pv.RepostCount),
		LikeCount:   count(pv.LikeCount),
		IndexedAt:   pv.IndexedAt,
	}
	return out
}

func author(p *appbsky.ActorDefs_ProfileViewBasic) model.Author {
	if p == nil {
		return model.Author{}
	}
	return model.Author{
		DID:         p.Did,
		Handle:      p.Handle,
		DisplayName: str(p.DisplayName),
		Avatar:      str(p.Avatar),
	}
}

// postRecord reads the app.bsky.feed.post body out of a decoded record.
// Other record types map to an empty body.
func postRecord(d *util.LexiconTypeDecoder) model.PostRecord {
	if d == nil {
		return model.PostRecord{}
	}
	fp, ok := d.Val.(*appbsky.FeedPost)
	if !ok || fp == nil {
		return model.PostRecord{}
	}
	return model.PostRecord{Type: typeFeedPost, Text: fp.Text, CreatedAt: fp.CreatedAt, Langs: fp.Langs}
}

func embedView(e *appbsky.FeedDefs_PostView_Embed) *model.EmbedView {
	if e == nil {
		return nil
	}
	switch {
	case e.EmbedRecord_View != nil:
		return &model.EmbedView{Type: typeRecordView, Record: embeddedRecord(e.EmbedRecord_View.Record)}
	case e.EmbedRecordWithMedia_View != nil:
		v := e.EmbedRecordWithMedia_View
		rec := &model.EmbedRecord{Type: typeRecordView}
		if v.Record != nil {
			rec.Record = embeddedRecord(v.Record.Record)
		}
		return &model.EmbedView{Type: typeRecordMedia, Record: rec}
	case e.EmbedImages_View != nil:
		return &model.EmbedView{Type: typeImagesView, Images: images(e.EmbedImages_View)}
	case e.EmbedExternal_View != nil && e.EmbedExternal_View.External != nil:
		x := e.EmbedExternal_View.External
		return &model.EmbedView{Type: typeExternalView, External: &model.External{
			URI:         x.Uri,
			Title:       x.Title,
			Description: x.Description,
			Thumb:       str(x.Thumb),
		}}
	}
	return nil
}

// embeddedRecord keeps quoted posts only. Feed generators, lists and
// unavailable records become an empty record so the page still renders.
func embeddedRecord(r *appbsky.EmbedRecord_View_Record) *model.EmbedRecord {
	if r == nil || r.EmbedRecord_ViewRecord == nil {
		return &model.EmbedRecord{}
	}
	vr := r.EmbedRecord_ViewRecord
	a := author(vr.Author)
	body := postRecord(vr.Value)
	return &model.EmbedRecord{
		Type:   typeViewRecord,
		URI:    vr.Uri,
		CID:    vr.Cid,
		Author: &a,
		Value:  &body,
	}
}

func images(v *appbsky.EmbedImages_View) []model.Image {
	out := make([]model.Image, 0, len(v.Images))
	for _, img := range v.Images {
		if img == nil {
			continue
		}
		out = append(out, model.Image{Thumb: img.Thumb, Fullsize: img.Fullsize, Alt: img.Alt})
	}
	return out
}

func count(p *int64) int {
	if p == nil {
		return 0
	}
	return int(*p)
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
