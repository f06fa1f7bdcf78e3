package backend

import (
	"encoding/json"
	"regexp"

	"github.com/oit-uog/solr-federator/internal/field"
)

// Document is one search result row. Field names vary per merged schema, so
// it is kept as a loosely-typed map rather than a fixed struct; "spid" (the
// backend's stable identity key), "coll" (the owning collection's short
// name), and "img" (attachments, see Attachment) are the only keys every
// caller can rely on.
type Document map[string]any

// Attachment is one entry of a document's "img" field, restored from the
// backend's unquoted-identifier pseudo-JSON shape.
type Attachment struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
	Coll  string `json:"coll"`
}

// imgUnquotedKey matches a bare-word JSON key (the word before a colon) the
// upstream emits for attachment records, e.g. {AttachmentID:1,Title:"x",...}
// — not valid JSON until every such key is wrapped in double quotes. Values
// are left as they are.
var imgUnquotedKey = regexp.MustCompile(`(\w+)(:(".*?"|[^,}]))`)

func parseAttachmentBlob(raw string, coll string) ([]Attachment, error) {
	quoted := imgUnquotedKey.ReplaceAllString(raw, `"$1"$2`)

	var rows []struct {
		AttachmentID       int    `json:"AttachmentID"`
		AttachmentLocation string `json:"AttachmentLocation"`
		Title              string `json:"Title"`
	}
	if err := json.Unmarshal([]byte(quoted), &rows); err != nil {
		return nil, err
	}

	out := make([]Attachment, 0, len(rows))
	for _, r := range rows {
		out = append(out, Attachment{
			ID:    r.AttachmentID,
			Name:  r.AttachmentLocation,
			Title: r.Title,
			Coll:  coll,
		})
	}
	return out, nil
}

// postProcess rewrites a raw decoded solr document in place: drops the raw
// "contents" field, applies the merged schema's type casts, renames any
// field whose solrname changed during the schema merge, stamps the owning
// collection's short name, and parses the "img" pseudo-JSON blob into a
// list of Attachment records.
func postProcess(doc map[string]any, model *field.Model, shortName string) (Document, error) {
	delete(doc, "contents")

	for solrname, value := range doc {
		if solrname == "img" {
			continue
		}
		cast, ok := model.TypeCasts[solrname]
		if !ok {
			continue
		}
		cv, err := cast(value)
		if err != nil {
			return nil, err
		}
		doc[solrname] = cv
	}

	for from, to := range model.ChangedSolrnames {
		if v, ok := doc[from]; ok {
			doc[to] = v
			delete(doc, from)
		}
	}

	doc["coll"] = shortName

	if raw, ok := doc["img"]; ok {
		blob, ok := raw.(string)
		if ok {
			attachments, err := parseAttachmentBlob(blob, shortName)
			if err == nil {
				doc["img"] = attachments
			}
		}
	}

	return Document(doc), nil
}
