package errors

// ErrorCode identifies a class of application error in API responses.
type ErrorCode int32

const (
	ErrorCode_HTTP_OK           ErrorCode = 0
	ErrorCode_INTERNAL          ErrorCode = 1000
	ErrorCode_INVALID_ARGUMENT  ErrorCode = 1001
	ErrorCode_NOT_FOUND         ErrorCode = 1002
	ErrorCode_ALREADY_EXISTS    ErrorCode = 1003
	ErrorCode_PERMISSION_DENIED ErrorCode = 1004
	ErrorCode_UNAUTHENTICATED   ErrorCode = 1005
	ErrorCode_INVALID_PAYLOAD   ErrorCode = 1006

	ErrorCode_AUTH_INVALID_TOKEN         ErrorCode = 2000
	ErrorCode_AUTH_TOKEN_EXPIRED         ErrorCode = 2001
	ErrorCode_AUTH_INVALID_REFRESH_TOKEN ErrorCode = 2002
	ErrorCode_AUTH_OAUTH_FAILED          ErrorCode = 2003
	ErrorCode_AUTH_USER_NOT_FOUND        ErrorCode = 2004

	ErrorCode_SOURCE_NOT_CONNECTED ErrorCode = 3000
	ErrorCode_UPSTREAM_FAILED      ErrorCode = 3001
	ErrorCode_INVALID_SIGNATURE    ErrorCode = 3002

	ErrorCode_MODEL_OUTPUT_PARSE ErrorCode = 4000
	ErrorCode_ANALYSIS_FAILED    ErrorCode = 4001

	ErrorCode_SYNC_FAILED ErrorCode = 5000
)

var codeNames = map[ErrorCode]string{
	ErrorCode_HTTP_OK:                    "OK",
	ErrorCode_INTERNAL:                   "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:           "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:                  "NOT_FOUND",
	ErrorCode_ALREADY_EXISTS:             "ALREADY_EXISTS",
	ErrorCode_PERMISSION_DENIED:          "PERMISSION_DENIED",
	ErrorCode_UNAUTHENTICATED:            "UNAUTHENTICATED",
	ErrorCode_INVALID_PAYLOAD:            "INVALID_PAYLOAD",
	ErrorCode_AUTH_INVALID_TOKEN:         "AUTH_INVALID_TOKEN",
	ErrorCode_AUTH_TOKEN_EXPIRED:         "AUTH_TOKEN_EXPIRED",
	ErrorCode_AUTH_INVALID_REFRESH_TOKEN: "AUTH_INVALID_REFRESH_TOKEN",
	ErrorCode_AUTH_OAUTH_FAILED:          "AUTH_OAUTH_FAILED",
	ErrorCode_AUTH_USER_NOT_FOUND:        "AUTH_USER_NOT_FOUND",
	ErrorCode_SOURCE_NOT_CONNECTED:       "SOURCE_NOT_CONNECTED",
	ErrorCode_UPSTREAM_FAILED:            "UPSTREAM_FAILED",
	ErrorCode_INVALID_SIGNATURE:          "INVALID_SIGNATURE",
	ErrorCode_MODEL_OUTPUT_PARSE:         "MODEL_OUTPUT_PARSE",
	ErrorCode_ANALYSIS_FAILED:            "ANALYSIS_FAILED",
	ErrorCode_SYNC_FAILED:                "SYNC_FAILED",
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
