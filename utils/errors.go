package utils

import "errors"

var (
	ErrEmptyURL            = errors.New("destination URL cannot be empty")
	ErrInvalidURL          = errors.New("invalid destination URL format")
	ErrInvalidScheme       = errors.New("destination scheme must be http or https")
	ErrEmptyHost           = errors.New("destination host cannot be empty")
	ErrLocalhostNotAllowed = errors.New("localhost destinations are not allowed")
	ErrPrivateIPNotAllowed = errors.New("private IP destinations are not allowed")

	ErrSlugTooShort      = errors.New("slug is too short")
	ErrSlugTooLong       = errors.New("slug is too long")
	ErrSlugInvalidStart  = errors.New("slug must start with a letter or digit")
	ErrSlugInvalidEnd    = errors.New("slug must end with a letter or digit")
	ErrSlugInvalidFormat = errors.New("slug may only contain letters, digits, hyphens and underscores")
	ErrSlugPureNumber    = errors.New("slug cannot be purely numeric")
	ErrSlugReserved      = errors.New("slug is a reserved word")
)
