package hsm

import (
	"fmt"
	"syscall"

	"github.com/pkg/errors"
	"github.com/pkg/xattr"
)

// ErrMarkerUnsupported means the filesystem holding the file cannot store
// import markers.
var ErrMarkerUnsupported = errors.New("import markers not supported by filesystem")

const (
	// ObjectAttr names the backend object an imported file was created from.
	ObjectAttr = "user.hsm.object"
	ETagAttr   = "user.hsm.etag"
)

func setMarker(path string, obj Object) error {
	if err := handleXattrErr(xattr.LSet(path, ObjectAttr, []byte(obj.Name))); err != nil {
		return err
	}
	if obj.ETag == "" {
		return nil
	}
	return handleXattrErr(xattr.LSet(path, ETagAttr, []byte(obj.ETag)))
}

// ImportedFrom returns the object name recorded on path, or "" when the file
// carries no marker. It fails with ErrMarkerUnsupported when the filesystem
// has no extended attributes.
func ImportedFrom(path string) (string, error) {
	b, err := xattr.LGet(path, ObjectAttr)
	if err != nil {
		var xerr *xattr.Error
		if errors.As(err, &xerr) && xerr.Err == xattr.ENOATTR {
			return "", nil
		}
		return "", handleXattrErr(err)
	}
	return string(b), nil
}

func handleXattrErr(err error) error {
	switch e := err.(type) {
	case nil:
		return nil

	case *xattr.Error:
		if e.Err == syscall.ENOTSUP || e.Err == syscall.EOPNOTSUPP {
			return fmt.Errorf("%w: %s: %w", ErrMarkerUnsupported, e.Path, e.Err)
		}
		return errors.WithStack(e)

	default:
		return errors.WithStack(e)
	}
}
