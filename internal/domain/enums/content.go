package enums

import "strings"

type ContentStatus string

const (
	ContentStatusPublished    ContentStatus = "PUB"
	ContentStatusDraft        ContentStatus = "DRF"
	ContentStatusHidden       ContentStatus = "HID"
	ContentStatusBanned       ContentStatus = "BAN"
	ContentStatusFlaggedToBan ContentStatus = "FLB"
	ContentStatusFlagDeleted  ContentStatus = "FLD"
	ContentStatusRemoved      ContentStatus = "RMV"
)

// ContentType is the kind of item a report or appeal points at.
type ContentType string

const (
	ContentTypePost    ContentType = "post"
	ContentTypeComment ContentType = "comment"
	ContentTypeAccount ContentType = "account"
	ContentTypeMessage ContentType = "message"
)

func ParseContentType(raw string) (ContentType, bool) {
	t := ContentType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case ContentTypePost, ContentTypeComment, ContentTypeAccount, ContentTypeMessage:
		return t, true
	}
	return "", false
}

// Stored reports whether items of this type live in the content repository.
func (t ContentType) Stored() bool {
	return t == ContentTypePost || t == ContentTypeComment
}
