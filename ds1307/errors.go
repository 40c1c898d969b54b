package ds1307

import (
	errgo "gopkg.in/errgo.v1"
)

// Error causes returned by Device methods. Use errgo.Cause to classify an error:
//
//	if errgo.Cause(err) == ds1307.ErrSnapshotAbsent {
//		// nothing saved yet
//	}
var (
	// ErrInvalidArgument is the cause of errors due to an unknown field or mode, an invalid run state, a value
	// outside its register's range, or a buffer that is too short.
	ErrInvalidArgument = errgo.New("invalid argument")

	// ErrSnapshotAbsent is the cause of the error returned when reading a snapshot that was never saved or has
	// been cleared.
	ErrSnapshotAbsent = errgo.New("no snapshot saved")

	// ErrTransport is the cause of any error reported by the I2C bus. The bus error is kept as the underlying
	// error.
	ErrTransport = errgo.New("i2c transfer failed")
)

func invalidf(f string, a ...interface{}) error {
	return errgo.WithCausef(ErrInvalidArgument, ErrInvalidArgument, f, a...)
}

func transportf(err error, f string, a ...interface{}) error {
	return errgo.WithCausef(err, ErrTransport, f, a...)
}
