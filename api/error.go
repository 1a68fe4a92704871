package api

// Error codes returned to the web client.
const (
	ErrService    = "ERR_SERVICE"
	ErrNotFound   = "ERR_NOT_FOUND"
	ErrBadRequest = "ERR_BAD_REQUEST"
	ErrBadParam   = "ERR_BAD_PARAM"
	ErrBadJwt     = "ERR_BAD_JWT"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e apiError) Error() string {
	return e.Message
}

func newBadJWTError(msg string) apiError {
	return apiError{
		Code:    ErrBadJwt,
		Message: msg,
	}
}

func newNotFoundError() apiError {
	return apiError{
		Code:    ErrNotFound,
		Message: "Not found",
	}
}

func newBadRequestError(msg string) apiError {
	return apiError{
		Code:    ErrBadRequest,
		Message: msg,
	}
}

func newBadParamError(param string) apiError {
	return apiError{
		Code:    ErrBadParam,
		Message: "bad parameter: " + param,
	}
}
