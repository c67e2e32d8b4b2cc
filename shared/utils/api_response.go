package utils

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  []ValidationError `json:"fields,omitempty"`
}

func CreateErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: APIError{
			Code:    code,
			Message: message,
		},
	}
}

func CreateValidationErrorResponse(message string, fields []ValidationError) ErrorResponse {
	resp := CreateErrorResponse("INVALID_REQUEST", message)
	resp.Error.Fields = fields
	return resp
}
