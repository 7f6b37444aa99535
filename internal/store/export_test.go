package store

import "github.com/lecternlabs/lectern/internal/models"

// SwapMarshalDocument replaces the document serializer and returns a restore
// function, letting tests force serialization failures.
func SwapMarshalDocument(fn func(*models.Project) ([]byte, error)) (restore func()) {
	prev := marshalDocument
	marshalDocument = fn
	return func() { marshalDocument = prev }
}
