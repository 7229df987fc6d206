// Package landerr writes the XML error markers the game client understands.
package landerr

import (
	"encoding/xml"
	"errors"
	"net/http"

	"github.com/mcoot/townserver/internal/model"
)

// Error types reported in the type attribute
const (
	TypeNotAuthenticated = "NOT_AUTHENTICATED"
	TypeForbidden        = "FORBIDDEN"
	TypeBadRequest       = "BAD_REQUEST"
	TypeInternal         = "INTERNAL_ERROR"
)

// ContentType of error bodies
const ContentType = "application/xml"

// Body is the XML error element
type Body struct {
	XMLName xml.Name `xml:"error"`
	Code    int      `xml:"code,attr"`
	Type    string   `xml:"type,attr"`
	Field   string   `xml:"field,attr,omitempty"`
}

// Write writes the XML marker for err
func Write(w http.ResponseWriter, err error) {
	body := toBody(err)
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(body.Code)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(body)
}

// Status returns the HTTP status err maps to
func Status(err error) int {
	return toBody(err).Code
}

func toBody(err error) Body {
	switch {
	case errors.Is(err, model.ErrIdentityNotFound):
		return Body{Code: http.StatusUnauthorized, Type: TypeNotAuthenticated}
	case errors.Is(err, model.ErrIdentityConflict):
		return Body{Code: http.StatusForbidden, Type: TypeForbidden, Field: "mayhemId"}
	case errors.Is(err, model.ErrEmptyBody),
		errors.Is(err, model.ErrMalformedBody):
		return Body{Code: http.StatusBadRequest, Type: TypeBadRequest, Field: "body"}
	case errors.Is(err, model.ErrInvalidTown):
		return Body{Code: http.StatusBadRequest, Type: TypeBadRequest, Field: "land"}
	case errors.Is(err, model.ErrInvalidOwnerKey):
		return Body{Code: http.StatusBadRequest, Type: TypeBadRequest, Field: "owner"}
	default:
		return Body{Code: http.StatusInternalServerError, Type: TypeInternal}
	}
}
