package pkg

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteResponseBytes(t *testing.T) {
	rr := httptest.NewRecorder()

	page := `<main>hola</main>`
	WriteResponseBytes(rr, ContentType.HTML, []byte(page), http.StatusUnprocessableEntity)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, ContentType.HTML, rr.Header().Get("Content-Type"))
	assert.Equal(t, page, rr.Body.String())
}

func TestWriteResponse_noContentType(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteResponse(rr, "", "formulario inválido", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "formulario inválido", rr.Body.String())
}
