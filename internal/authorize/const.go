package authorize

const (
	paramResponseType          = "response_type"
	paramResponseMode          = "response_mode"
	paramClientID              = "client_id"
	paramRedirectURI           = "redirect_uri"
	paramScope                 = "scope"
	paramState                 = "state"
	paramNonce                 = "nonce"
	paramDisplay               = "display"
	paramPrompt                = "prompt"
	paramMaxAge                = "max_age"
	paramUILocales             = "ui_locales"
	paramIDTokenHint           = "id_token_hint"
	paramLoginHint             = "login_hint"
	paramACRValues             = "acr_values"
	paramAMRValues             = "amr_values"
	paramRequest               = "request"
	paramRequestURI            = "request_uri"
	paramCodeChallenge         = "code_challenge"
	paramCodeChallengeMethod   = "code_challenge_method"
	paramSessionID             = "session_id"
	paramClaims                = "claims"
	paramAuthReqID             = "auth_req_id"
	paramOriginHeaders         = "origin_headers"
	paramCustomResponseHeaders = "custom_response_headers"
)

const (
	paramCode             = "code"
	paramAccessToken      = "access_token"
	paramTokenType        = "token_type"
	paramExpiresIn        = "expires_in"
	paramIDToken          = "id_token"
	paramSessionState     = "session_state"
	paramError            = "error"
	paramErrorDescription = "error_description"
	paramHint             = "hint"
)

const (
	// sessionAttributePrompt records the prompt values, login included, that
	// the session must be authenticated again with.
	sessionAttributePrompt = "prompt"

	hintSessionSelection = "Use prompt=login in order to alter existing session."

	// requestObjectMaxSize limits the body read when fetching a request_uri.
	requestObjectMaxSize = 1 << 20
)
