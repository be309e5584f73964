package server

import (
	"encoding/json"
	"net/http"
)

type apiError struct {
	Message string `json:"message"`
}

// jsonCT is a pre-allocated header value slice -- direct map assignment
// avoids the []string{v} alloc that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	data, err := json.Marshal(apiError{Message: message})
	if err != nil {
		return
	}
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	w.Write(data)
}
