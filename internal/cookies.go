package internal

const (
	COOKIE_ACCESS_TOKEN_NAME = "orbe_access_token"
)
