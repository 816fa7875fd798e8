package response

type ErrorCode int

const (
	OK ErrorCode = 0

	InvalidRequest ErrorCode = 40001
	InvalidJSON    ErrorCode = 40002

	InvalidCredentials ErrorCode = 40101
	InvalidToken       ErrorCode = 40103
	NotAuthenticated   ErrorCode = 40104

	InvalidRole ErrorCode = 40301
	LastAdmin   ErrorCode = 40302
	RoleInUse   ErrorCode = 40303

	NotFound ErrorCode = 40401

	TooManyRequests ErrorCode = 42901

	Internal ErrorCode = 50001
)
