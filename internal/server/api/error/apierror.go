// Package apierror holds problem values shared by the API server and the
// authentication handshake.
package apierror

import "github.com/sanjay900/joybridge/apitypes"

func ErrUnauthorized(detail string) apitypes.ApiError {
	return apitypes.ApiError{Status: 401, Title: "Unauthorized", Detail: detail}
}
