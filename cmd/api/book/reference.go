package book

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type RefKind int

const (
	SurrogateRef RefKind = iota + 1
	NaturalRef
)

func (k RefKind) String() string {
	switch k {
	case SurrogateRef:
		return "surrogate"
	case NaturalRef:
		return "natural"
	default:
		return "invalid"
	}
}

// Reference addresses a book either by the store's surrogate key or by its
// natural key. Exactly one of Key and ID is meaningful, depending on Kind.
type Reference struct {
	Kind RefKind
	Key  int64
	ID   string
}

func (r Reference) String() string {
	if r.Kind == SurrogateRef {
		return fmt.Sprintf("%s:%d", r.Kind, r.Key)
	}
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

/*
Candidates returns the lookups to try for a raw reference, in precedence order.
A well-formed surrogate key is tried first and the same text as a natural key second.
A malformed surrogate key is not an error, it just yields the natural lookup alone.
*/
func Candidates(raw string) []Reference {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	refs := make([]Reference, 0, 2)
	key, err := strconv.ParseInt(raw, 10, 64)
	if err == nil && key > 0 {
		refs = append(refs, Reference{Kind: SurrogateRef, Key: key})
	}
	return append(refs, Reference{Kind: NaturalRef, ID: raw})
}

// BookFinder is the read side of the store the resolver needs.
type BookFinder interface {
	GetBookByKey(ctx context.Context, key int64) (Book, error)
	GetBookByNaturalKey(ctx context.Context, id string) (Book, error)
}

/* Looks up a single reference variant. */
func lookup(ctx context.Context, finder BookFinder, ref Reference) (Book, error) {
	switch ref.Kind {
	case SurrogateRef:
		return finder.GetBookByKey(ctx, ref.Key)
	case NaturalRef:
		return finder.GetBookByNaturalKey(ctx, ref.ID)
	default:
		return Book{}, ErrResponseReferenceInvalid
	}
}

/*
Resolve maps a raw reference to exactly one book. The first candidate that matches wins;
NotFound from every candidate yields ErrResponseBookNotFound. Any other store failure
stops the resolution and is returned as is.
*/
func Resolve(ctx context.Context, finder BookFinder, raw string) (Book, error) {
	refs := Candidates(raw)
	if len(refs) == 0 {
		return Book{}, fmt.Errorf("resolving book reference: %w", ErrResponseBookNotFound)
	}

	for _, ref := range refs {
		b, err := lookup(ctx, finder, ref)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrResponseBookNotFound) {
			return Book{}, fmt.Errorf("resolving book reference %s: %w", ref, err)
		}
	}

	return Book{}, fmt.Errorf("resolving book reference %q: %w", raw, ErrResponseBookNotFound)
}
