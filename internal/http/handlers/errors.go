// Package handlers defines the HTTP error codes returned by the REST surface.
//
// Every error response carries one of these codes next to a human-readable
// message. Clients branch on the code; the message may change.
//
//	{
//	  "success": false,
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "bad_request",
//	  "message": "user_id and receiver_id are required"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"
	ErrCodePayloadTooLarge  = "payload_too_large"

	// Domain-specific:
	ErrCodeFetchFailed   = "fetch_failed"
	ErrCodeSendFailed    = "send_failed"
	ErrCodeInvalidMedia  = "invalid_media"
	ErrCodePurgeFailed   = "purge_failed"
	ErrCodeInboxFailed   = "inbox_failed"
	ErrCodeMissingParams = "missing_params"
)
