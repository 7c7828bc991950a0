//go:build !linux

package ledlink

type modemLines struct{}

func openModemLines(name string) (*modemLines, error) { return nil, ErrUnsupported }

func (m *modemLines) setDTR(on bool) error { return ErrNoControlLine }

func (m *modemLines) Close() error { return nil }
