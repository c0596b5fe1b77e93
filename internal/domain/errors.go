package domain

import "errors"

var (
	ErrAlreadyServed        = errors.New("point already served")
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrUnknownPoint         = errors.New("unknown pickup point")
	ErrUnknownVehicle       = errors.New("unknown vehicle")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrEpisodeNotFound      = errors.New("episode not found")
)
