package mediahost

import (
	"encoding/json"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

var ErrAPI = errors.New("media host api")

// ErrorResponse is the JSON body returned with a failed API call.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func toErrorFromResponse(resp *resty.Response) error {
	var errorResponse ErrorResponse
	if err := json.Unmarshal(resp.Body(), &errorResponse); err != nil || errorResponse.Error.Message == "" {
		return errors.Wrapf(ErrAPI, "(HTTP Status: %d) unable to parse error response", resp.StatusCode())
	}

	return errors.Wrapf(ErrAPI, "(HTTP Status: %d) %s", resp.StatusCode(), errorResponse.Error.Message)
}
