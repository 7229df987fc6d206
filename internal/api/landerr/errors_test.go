package landerr

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/townserver/internal/model"
)

func TestWriteMapsErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{model.ErrIdentityNotFound, http.StatusUnauthorized, TypeNotAuthenticated},
		{model.ErrIdentityConflict, http.StatusForbidden, TypeForbidden},
		{fmt.Errorf("%w: missing id", model.ErrInvalidTown), http.StatusBadRequest, TypeBadRequest},
		{model.ErrEmptyBody, http.StatusBadRequest, TypeBadRequest},
		{fmt.Errorf("%w: disk full", model.ErrStorage), http.StatusInternalServerError, TypeInternal},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		Write(rec, tc.err)

		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "<?xml"))

		var body Body
		require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.status, body.Code)
		assert.Equal(t, tc.typ, body.Type)
	}
}
