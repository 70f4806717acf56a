package apperrors

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrSessionInProgress      = errors.New("session in progress")
	ErrNoActiveTraining       = errors.New("no active training")
	ErrTrainingInProgress     = errors.New("training already in progress")
	ErrUncalibrated           = errors.New("device is not calibrated")
	ErrInvalidCalibration     = errors.New("invalid calibration")
)
