package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayload(t *testing.T) {
	assert.Equal(t, "QUJD", Payload("data:image/jpeg;base64,QUJD"))
	assert.Equal(t, "QUJD", Payload("QUJD"))
	assert.Equal(t, "", Payload("data:image/png;base64,"))
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "image/png", MIMEType("data:image/png;base64,QUJD"))
	assert.Equal(t, "image/jpeg", MIMEType("data:image/jpeg,QUJD"))
	assert.Equal(t, "", MIMEType("QUJD"))
}

func TestDataURI(t *testing.T) {
	uri := DataURI("image/jpeg", []byte("ABC"))
	assert.Equal(t, "data:image/jpeg;base64,QUJD", uri)
	assert.Equal(t, "QUJD", Payload(uri))
	assert.Equal(t, "image/jpeg", MIMEType(uri))
}
