package docstore

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wippyai/hostbridge/errors"
)

func TestDocumentID(t *testing.T) {
	id, ok := DocumentID(Document{"id": "abc", "name": "x"})
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = DocumentID(Document{"id": 7})
	assert.False(t, ok, "non-string ids are not identities")

	_, ok = DocumentID(Document{"id": ""})
	assert.False(t, ok)

	_, ok = DocumentID(Document{"name": "x"})
	assert.False(t, ok)
}

func TestErrorClassification(t *testing.T) {
	notFound := errors.Server("search", 404, "index_not_found_exception")
	badRequest := errors.Server("create index", 400, "")
	transport := errors.Transport("index", stderrors.New("dial tcp: connection refused"))

	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(badRequest))
	assert.False(t, IsNotFound(transport))

	assert.True(t, IsTransport(transport))
	assert.False(t, IsTransport(notFound))
	assert.False(t, IsTransport(stderrors.New("plain")))

	for _, err := range []error{notFound, badRequest, transport} {
		assert.ErrorIs(t, err, errors.ErrIO)
	}
}
