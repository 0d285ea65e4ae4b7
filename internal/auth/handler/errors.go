package handler

import (
	"errors"
	"log"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pwservice "passwordless-auth/internal/passwordless/service"
	"passwordless-auth/internal/ratelimit"
	tokenservice "passwordless-auth/internal/token/service"
)

// toStatus maps service errors to gRPC status. Messages never reveal why a
// credential was rejected.
func toStatus(err error) error {
	var ve *pwservice.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.Is(err, tokenservice.ErrTokenReuseDetected):
		return status.Error(codes.Unauthenticated, tokenservice.ErrTokenReuseDetected.Error())
	case errors.Is(err, tokenservice.ErrInvalidRefreshToken):
		return status.Error(codes.Unauthenticated, tokenservice.ErrInvalidRefreshToken.Error())
	case errors.Is(err, pwservice.ErrInvalidCredential):
		return status.Error(codes.Unauthenticated, pwservice.ErrInvalidCredential.Error())
	case errors.Is(err, ratelimit.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "too many requests, please try again later")
	case errors.Is(err, pwservice.ErrDispatchFailed):
		log.Printf("auth: %v", err)
		return status.Error(codes.Internal, pwservice.ErrDispatchFailed.Error())
	default:
		log.Printf("auth: internal error: %v", err)
		return status.Error(codes.Internal, "internal error")
	}
}
