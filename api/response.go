package api

import (
	"encoding/json"
	"net/http"
)

func (a *api) resp(w http.ResponseWriter, data interface{}) {
	b, err := json.Marshal(map[string]interface{}{"data": data})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err = w.Write(b); err != nil {
		a.log.Errorf("func resp: func Write: %s", err)
	}
}

func (a *api) respError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	code := http.StatusInternalServerError
	resp := map[string]interface{}{
		"code":    ErrService,
		"message": "Internal Server Error",
	}

	if apiErr, ok := err.(apiError); ok {
		resp["code"] = apiErr.Code
		resp["message"] = apiErr.Message

		switch apiErr.Code {
		case ErrNotFound:
			code = http.StatusNotFound
		case ErrBadRequest, ErrBadParam:
			code = http.StatusBadRequest
		case ErrBadJwt:
			code = http.StatusUnauthorized
		}
	} else {
		a.log.Errorf("func respError: %s", err)
	}

	b, err := json.Marshal(resp)
	if err != nil {
		a.log.Errorf("func respError: func Marshal: %s", err)
	}

	w.WriteHeader(code)

	if _, err = w.Write(b); err != nil {
		a.log.Errorf("func respError: func Write: %s", err)
	}
}
