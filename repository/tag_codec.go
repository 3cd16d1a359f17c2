package repository

import (
	"strconv"
	"strings"

	"crm-backend/models"
)

const tagFieldSeparator = ":"

// TagRef is the flat shape of one tag.
type TagRef struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TagRecord carries the tag both flat and nested under "tag", since list and
// detail consumers read different shapes.
type TagRecord struct {
	TagRef
	Tag TagRef `json:"tag"`
}

func NewTagRecord(t models.Tag) TagRecord {
	ref := TagRef{ID: t.ID, Name: t.Name, Color: t.Color}
	return TagRecord{TagRef: ref, Tag: ref}
}

// TagAggregateExpr is the store-side encoder: per customer it yields
// "id:name:color" segments joined by ListSeparator, de-duplicated. It
// expects "tags" to be joined into the query.
func TagAggregateExpr(d Dialect) string {
	segment := d.Concat(
		d.AsText("tags.id"),
		"'"+tagFieldSeparator+"'",
		"tags.name",
		"'"+tagFieldSeparator+"'",
		"COALESCE(tags.color, '')",
	)
	return d.AggregateDistinct(segment)
}

// EncodeTags is the application-side equivalent of TagAggregateExpr.
func EncodeTags(tags []TagRef) string {
	segments := make([]string, 0, len(tags))
	seen := make(map[uint]bool, len(tags))
	for _, t := range tags {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		segments = append(segments, strconv.FormatUint(uint64(t.ID), 10)+tagFieldSeparator+t.Name+tagFieldSeparator+t.Color)
	}
	return strings.Join(segments, ListSeparator)
}

// DecodeTags never fails. Segments with fewer than three fields or a
// non-numeric id are dropped. A name or color containing either separator
// cannot be recovered; fields past the third are ignored.
func DecodeTags(raw string) []TagRecord {
	out := []TagRecord{}
	if strings.TrimSpace(raw) == "" {
		return out
	}

	seen := make(map[uint]bool)
	for _, segment := range strings.Split(raw, ListSeparator) {
		parts := strings.Split(segment, tagFieldSeparator)
		if len(parts) < 3 {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil || seen[uint(id)] {
			continue
		}
		seen[uint(id)] = true

		ref := TagRef{ID: uint(id), Name: parts[1], Color: parts[2]}
		out = append(out, TagRecord{TagRef: ref, Tag: ref})
	}
	return out
}

// DecodeNullableTags decodes a possibly NULL aggregate column.
func DecodeNullableTags(raw *string) []TagRecord {
	if raw == nil {
		return []TagRecord{}
	}
	return DecodeTags(*raw)
}
