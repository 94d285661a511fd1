package ws

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNonceMismatch = errors.New("nonce mismatch")
	ErrBadToken      = errors.New("invalid operator token")
)

var validate = validator.New()

type ConnectParams struct {
	Client *ConnectClient `json:"client" validate:"required"`
	Auth   *ConnectAuth   `json:"auth"`
	Nonce  string         `json:"nonce" validate:"required"`
}

type ConnectClient struct {
	ID          string `json:"id" validate:"required,max=64"`
	DisplayName string `json:"displayName" validate:"max=64"`
	Version     string `json:"version"`
}

type ConnectAuth struct {
	Token string `json:"token"`
}

// VerifyConnect checks an operator's connect request against the nonce sent
// in the challenge and the configured shared token. An empty expected token
// disables the token check.
func VerifyConnect(paramsRaw json.RawMessage, challengeNonce, expectedToken string) (operatorID, displayName string, err error) {
	var params ConnectParams
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return "", "", fmt.Errorf("invalid connect params: %w", err)
	}
	if err := validate.Struct(params); err != nil {
		return "", "", fmt.Errorf("invalid connect params: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(params.Nonce), []byte(challengeNonce)) != 1 {
		return "", "", ErrNonceMismatch
	}

	if expectedToken != "" {
		token := ""
		if params.Auth != nil {
			token = params.Auth.Token
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			return "", "", ErrBadToken
		}
	}

	return params.Client.ID, params.Client.DisplayName, nil
}
