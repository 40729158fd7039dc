package utils

import (
	"io"
	"net/http"
)

// HTTPDoer é satisfeito por *http.Client e por clientes de teste
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// MakeRequest executa a requisição e devolve o status e o corpo completo
func MakeRequest(client HTTPDoer, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, data, nil
}

// IsServerError indica status que valem nova tentativa
func IsServerError(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
