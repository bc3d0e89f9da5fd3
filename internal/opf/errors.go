package opf

import "errors"

var (
	// ErrCannotOpen is returned by Package.Load when the backing text is unreadable.
	ErrCannotOpen = errors.New("cannot open package document")
	// ErrNoSink is returned by Package.Save without a destination.
	ErrNoSink = errors.New("no destination for package document")
)
