package query

import (
	"fmt"
	"strings"

	"github.com/oit-uog/solr-federator/internal/field"
)

// Resolver is the subset of field.Model the translator needs: resolving a
// colname-or-solrname token to the backend-local solrname that should
// actually be sent on the wire.
type Resolver interface {
	Resolve(fieldToken string) (string, error)
}

// Translate renders t into a backend query string against model. When
// ignoreMissing is true, a field token that doesn't resolve is rendered
// verbatim (unresolved) rather than failing the whole query, tolerating
// schema drift across backends mid-migration.
func Translate(t *Term, model Resolver, ignoreMissing bool) (string, error) {
	switch t.Kind {
	case KindValue:
		return fmt.Sprintf("(%s)", t.Value), nil

	case KindOr:
		return joinChildren(t.Children, " OR ", model, ignoreMissing)
	case KindAnd:
		return joinChildren(t.Children, " AND ", model, ignoreMissing)

	case KindFieldSearch:
		prefix, collapse, err := fieldPrefix(t.Field, model, ignoreMissing)
		if err != nil {
			return "", err
		}
		if collapse {
			return "*", nil
		}
		rendered, err := Translate(t.Search, model, ignoreMissing)
		if err != nil {
			return "", err
		}
		return prefix + rendered, nil

	case KindFieldRange:
		prefix, collapse, err := fieldPrefix(t.Field, model, ignoreMissing)
		if err != nil {
			return "", err
		}
		if collapse {
			return "*", nil
		}
		return fmt.Sprintf("%s[%s TO %s]", prefix, t.From, t.To), nil

	default:
		return "", &ParseError{Reason: "unknown term kind"}
	}
}

func joinChildren(children []*Term, sep string, model Resolver, ignoreMissing bool) (string, error) {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		rendered, err := Translate(c, model, ignoreMissing)
		if err != nil {
			return "", err
		}
		parts = append(parts, rendered)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// fieldPrefix resolves fieldToken and returns the "solrname:" prefix to
// render before a search value or range. collapse is true when the
// resolved field is the synthetic collection field, in which case the
// whole term renders as a bare "*" regardless of the search value given.
func fieldPrefix(fieldToken string, model Resolver, ignoreMissing bool) (prefix string, collapse bool, err error) {
	solrname, rerr := model.Resolve(fieldToken)
	if rerr != nil {
		if !ignoreMissing {
			return "", false, rerr
		}
		return fieldToken + ":", false, nil
	}
	if solrname == field.CollectionSolrname {
		return "", true, nil
	}
	return solrname + ":", false, nil
}

// ResolveSort resolves a sort token the same way a field term would,
// returning ("", false, nil) when the token resolves to the synthetic
// collection field (which never makes sense as a sort key against a single
// backend's index) or, with ignoreMissing, when it doesn't resolve at all.
func ResolveSort(sortToken string, model Resolver, ignoreMissing bool) (solrname string, use bool, err error) {
	if sortToken == "" {
		return "", false, nil
	}
	resolved, rerr := model.Resolve(sortToken)
	if rerr != nil {
		if ignoreMissing {
			return "", false, nil
		}
		return "", false, rerr
	}
	if resolved == field.CollectionSolrname {
		return "", false, nil
	}
	return resolved, true, nil
}
