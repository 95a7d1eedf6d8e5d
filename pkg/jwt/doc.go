// Package jwt signs and validates RS256 access tokens.
//
//	service, err := jwt.NewService(jwt.Config{
//	    PrivateKeyPath: "keys/private.pem",
//	    Issuer:         "bastion",
//	    ExpirationMins: 15,
//	})
//
//	token, err := service.Sign(jwt.Claims{UserID: id, Role: "user"})
//	claims, err := service.Validate(token)
//
// Validation failures map onto ErrTokenExpired, ErrTokenNotYetValid,
// ErrInvalidSignature and ErrInvalidToken.
package jwt
