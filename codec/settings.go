package codec

import (
	"errors"
	"fmt"
)

// WrongIDError means the leading setting identifier differs from the one requested.
type WrongIDError struct {
	Wanted byte
	Real   byte
}

func (e *WrongIDError) Error() string {
	return fmt.Sprintf("codec: wrong setting id: wanted 0x%02X, got 0x%02X", e.Wanted, e.Real)
}

// InvalidLenError means the setting body is not the size of the local structure.
type InvalidLenError struct {
	Wanted int
	Len    int
}

func (e *InvalidLenError) Error() string {
	return fmt.Sprintf("codec: invalid setting length: wanted %d bytes, got %d", e.Wanted, e.Len)
}

// IsVersionMismatch reports whether err comes from the id/length check, i.e.
// the firmware and this tool disagree about a settings layout.
func IsVersionMismatch(err error) bool {
	var idErr *WrongIDError
	var lenErr *InvalidLenError
	return errors.As(err, &idErr) || errors.As(err, &lenErr)
}

// UserMessage turns a settings decode error into the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsVersionMismatch(err) {
		return fmt.Sprintf("settings layout mismatch (%v), please update app or firmware", err)
	}
	return err.Error()
}

// SettingsBody strips the leading id byte from a settings response. The id
// must match and, when want >= 0, the body must be exactly want bytes.
func SettingsBody(id byte, data []byte, want int) ([]byte, error) {
	if len(data) == 0 {
		return nil, &InvalidLenError{Wanted: max(want, 0), Len: 0}
	}
	if data[0] != id {
		return nil, &WrongIDError{Wanted: id, Real: data[0]}
	}
	body := data[1:]
	if want >= 0 && len(body) != want {
		return nil, &InvalidLenError{Wanted: want, Len: len(body)}
	}
	return body, nil
}

// UnpackSettings checks the leading id byte and the body length before decoding.
func UnpackSettings[T any](id byte, data []byte) (T, error) {
	var v T
	body, err := SettingsBody(id, data, MustSize(&v))
	if err != nil {
		return v, err
	}
	err = Unpack(body, &v)
	return v, err
}

// PackSettings prepends id to the packed value.
func PackSettings(id byte, v any) ([]byte, error) {
	body, err := Pack(v)
	if err != nil {
		return nil, err
	}
	return append([]byte{id}, body...), nil
}
