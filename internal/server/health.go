package server

import "net/http"

var (
	healthBody = []byte("Proxy running!")
	plainCT    = []string{"text/plain"}
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(healthBody)
}
