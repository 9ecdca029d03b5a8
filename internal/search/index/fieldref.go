package index

import (
	"fmt"
	"strings"
)

const fieldRefJoiner = "/"

// FieldRef identifies a (document, field) pair. Its string form is
// "fieldName/docRef"; field names may not contain the joiner so the
// docRef is free to.
type FieldRef struct {
	DocRef    string
	FieldName string
}

func (f FieldRef) String() string {
	return f.FieldName + fieldRefJoiner + f.DocRef
}

// ParseFieldRef splits a serialised field ref at the first joiner.
func ParseFieldRef(ref string) (FieldRef, error) {
	n := strings.Index(ref, fieldRefJoiner)
	if n == -1 {
		return FieldRef{}, fmt.Errorf("malformed field ref: %s", ref)
	}
	return FieldRef{FieldName: ref[:n], DocRef: ref[n+1:]}, nil
}
