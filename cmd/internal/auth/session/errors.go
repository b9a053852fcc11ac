package session

import "errors"

// ErrNoSession is returned by Current when nobody is signed in.
var ErrNoSession = errors.New("no active session")
