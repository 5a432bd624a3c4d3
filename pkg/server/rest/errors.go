package rest

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
)

// ErrResponse model info
//
//	@Description	error response
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText    string   `json:"status"`
	ErrorText     string   `json:"error,omitempty"`
	ErrValidation []string `json:"validation,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrValidation(err error, errV []error) render.Renderer {
	vv := make([]string, 0, len(errV))
	for _, v := range errV {
		vv = append(vv, v.Error())
	}
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
		ErrValidation:  vv,
	}
}

func ErrTooManyRequests() render.Renderer {
	return &ErrResponse{
		HTTPStatusCode: http.StatusTooManyRequests,
		StatusText:     "Too many requests.",
	}
}

// ErrRouting maps the code carried by a routing error to a status.
func ErrRouting(err error) render.Renderer {
	resp := &ErrResponse{Err: err, ErrorText: err.Error()}
	switch util.ErrorCode(err) {
	case util.ErrBadParamInput:
		resp.HTTPStatusCode, resp.StatusText = http.StatusBadRequest, "Invalid request."
	case util.ErrNotFound:
		resp.HTTPStatusCode, resp.StatusText = http.StatusNotFound, "Route not found."
	case util.ErrTimeout:
		resp.HTTPStatusCode, resp.StatusText = http.StatusGatewayTimeout, "Route search timed out."
	case util.ErrConflict:
		resp.HTTPStatusCode, resp.StatusText = http.StatusConflict, "Conflict."
	default:
		resp.HTTPStatusCode, resp.StatusText = http.StatusInternalServerError, "Internal server error."
		resp.ErrorText = util.MessageInternalServerError
	}
	return resp
}

func translateError(err error, trans ut.Translator) (errs []error) {
	var validatorErrs validator.ValidationErrors
	if !errors.As(err, &validatorErrs) {
		return []error{err}
	}
	for _, e := range validatorErrs {
		errs = append(errs, errors.New(e.Translate(trans)))
	}
	return errs
}
